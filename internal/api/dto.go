package api

import (
	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/models"
)

// CreateDocRequest is the request body for creating a document.
type CreateDocRequest struct {
	Title   string  `json:"title" example:"Quarterly report" validate:"required"`
	Content string  `json:"content" example:"Revenue grew."`
	Tags    []int64 `json:"tags,omitempty" example:"1,2"`
	Created string  `json:"created,omitempty" example:"2024-03-05"`
}

// UpdateDocRequest is the request body for updating a document. Omitted
// fields are left unchanged.
type UpdateDocRequest struct {
	Title   *string  `json:"title,omitempty"`
	Content *string  `json:"content,omitempty"`
	Tags    *[]int64 `json:"tags,omitempty"`
	Created *string  `json:"created,omitempty" example:"2024-03-05"`
}

// DocDetail is the full document response type (aliased from the domain layer).
type DocDetail = docservice.DocDetail

// DocSummary is a lightweight item in a list response.
type DocSummary = models.Summary

// DocListResponse wraps paginated document listings.
type DocListResponse struct {
	Docs  []DocSummary `json:"docs" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// PreviewResponse carries the first characters of a document.
type PreviewResponse struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// TagItem is one tag in a flattened listing.
type TagItem = docservice.TagItem

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name     string `json:"name" example:"reports" validate:"required"`
	ParentID int64  `json:"parent_id" example:"0"`
}

// UpdateTagRequest renames and/or moves a tag.
type UpdateTagRequest struct {
	Name     *string `json:"name,omitempty"`
	ParentID *int64  `json:"parent_id,omitempty"`
}

// TagUsageResponse reports how many documents use a tag subtree.
type TagUsageResponse struct {
	ID    int64 `json:"id"`
	Count int   `json:"count"`
}

// CopyRequest copies documents into another store file.
type CopyRequest struct {
	IDs  []int64 `json:"ids" validate:"required"`
	Dest string  `json:"dest" example:"/data/archive.db" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/docs/1/attachments/image.png" validate:"required"`
}
