package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxAssetSize  = 10 << 20
	maxRedirects  = 5
	fetchDeadline = 30 * time.Second
)

// assetTypes maps the accepted MIME types to their canonical extension.
var assetTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// asset is a downloaded or decoded file awaiting attachment.
type asset struct {
	data []byte
	ext  string // from the declared MIME type, may be empty
}

type attachResult struct {
	Document int64  `json:"document"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
}

func (s *Server) attachAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var a asset
	if strings.HasPrefix(src, "data:") {
		a, err = decodeDataURI(src)
	} else {
		a, err = fetchHTTP(ctx, src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = nameFromSource(src, a.ext)
	}
	name = sanitizeFilename(name)
	if err := checkContent(a.data, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.svc.AddAttachment(ctx, id, name, a.data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to attach: %v", err)), nil
	}
	out, _ := json.Marshal(attachResult{
		Document: id,
		Name:     name,
		URL:      fmt.Sprintf("/api/docs/%d/attachments/%s", id, url.PathEscape(name)),
		Size:     len(a.data),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI accepts data:<mime>[;params];base64,<payload>.
func decodeDataURI(uri string) (asset, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return asset{}, fmt.Errorf("invalid data URI: missing comma separator")
	}
	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return asset{}, fmt.Errorf("only base64 data URIs are supported")
	}
	ext, ok := assetTypes[params[0]]
	if !ok {
		return asset{}, fmt.Errorf("unsupported MIME type in data URI: %s", params[0])
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return asset{}, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxAssetSize {
		return asset{}, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxAssetSize)
	}
	return asset{data: data, ext: ext}, nil
}

// fetchHTTP downloads src, refusing loopback and cloud metadata hosts on
// every hop.
func fetchHTTP(ctx context.Context, src string) (asset, error) {
	u, err := url.Parse(src)
	if err != nil {
		return asset{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return asset{}, fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkBlockedHost(u.Hostname()); err != nil {
		return asset{}, err
	}

	client := &http.Client{
		Timeout: fetchDeadline,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return checkBlockedHost(r.URL.Hostname())
		},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return asset{}, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return asset{}, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return asset{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return asset{}, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAssetSize {
		return asset{}, fmt.Errorf("file too large: exceeds %d bytes", maxAssetSize)
	}
	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return asset{data: data, ext: assetTypes[strings.TrimSpace(mime)]}, nil
}

var metadataIP = net.ParseIP("169.254.169.254")

func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		var err error
		if ips, err = net.LookupIP(host); err != nil {
			return nil //nolint:nilerr // the HTTP client reports DNS failures
		}
	}
	for _, ip := range ips {
		switch {
		case ip.IsLoopback():
			return fmt.Errorf("blocked host: loopback address %s", host)
		case ip.Equal(metadataIP):
			return fmt.Errorf("blocked host: cloud metadata address %s", host)
		}
	}
	return nil
}

// nameFromSource uses the last URL path element when it has an extension,
// otherwise a random name with ext.
func nameFromSource(src, ext string) string {
	if !strings.HasPrefix(src, "data:") {
		if u, err := url.Parse(src); err == nil {
			if base := path.Base(u.Path); path.Ext(base) != "" {
				return base
			}
		}
	}
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}

// sanitizeFilename strips directories and replaces unsafe characters.
func sanitizeFilename(name string) string {
	name = unsafeNameRe.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	return name
}

// checkContent enforces the extension allow-list and verifies the bytes
// look like the type the extension claims.
func checkContent(data []byte, name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	allowed := false
	for _, e := range assetTypes {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("unsupported file extension: %s (allowed: png, jpg, jpeg, gif, webp, svg, pdf)", filepath.Ext(name))
	}

	if ext == ".svg" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	mime, _, _ := strings.Cut(detected, ";")
	if assetTypes[mime] != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
