package tagforest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/docket/internal/apperr"
)

func sampleRows() []Row {
	return []Row{
		{ID: 1, Name: "work", ParentID: 0},
		{ID: 2, Name: "home", ParentID: 0},
		{ID: 3, Name: "reports", ParentID: 1},
		{ID: 4, Name: "q1", ParentID: 3},
		{ID: 5, Name: "garden", ParentID: 2},
		{ID: 6, Name: "meetings", ParentID: 1},
	}
}

func TestBuildRoundTrip(t *testing.T) {
	f, err := Build(sampleRows())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Len() != 6 {
		t.Fatalf("Len = %d, want 6", f.Len())
	}
	want := []Row{
		{ID: 1, Name: "work"},
		{ID: 3, Name: "reports", ParentID: 1},
		{ID: 4, Name: "q1", ParentID: 3},
		{ID: 6, Name: "meetings", ParentID: 1},
		{ID: 2, Name: "home"},
		{ID: 5, Name: "garden", ParentID: 2},
	}
	if diff := cmp.Diff(want, f.Rows()); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}

	again, err := Build(f.Rows())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if diff := cmp.Diff(f.Rows(), again.Rows()); diff != "" {
		t.Errorf("rebuild changed structure:\n%s", diff)
	}
}

func TestBuildChildBeforeParent(t *testing.T) {
	rows := []Row{{ID: 9, Name: "child", ParentID: 8}, {ID: 8, Name: "parent"}}
	f, err := Build(rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]int64{8, 9}, f.Descendants(8)); diff != "" {
		t.Errorf("Descendants mismatch:\n%s", diff)
	}
}

func TestBuildDangling(t *testing.T) {
	cases := map[string]struct {
		rows []Row
		lost int
	}{
		"missing parent": {rows: []Row{{ID: 1, Name: "a"}, {ID: 2, Name: "b", ParentID: 99}}, lost: 1},
		"cycle":          {rows: []Row{{ID: 1, Name: "a", ParentID: 2}, {ID: 2, Name: "b", ParentID: 1}}, lost: 2},
		"self parent":    {rows: []Row{{ID: 1, Name: "a", ParentID: 1}}, lost: 1},
		"duplicate id":   {rows: []Row{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}, lost: 1},
		"orphan subtree": {rows: []Row{{ID: 2, Name: "b", ParentID: 7}, {ID: 3, Name: "c", ParentID: 2}}, lost: 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(tc.rows)
			if !errors.Is(err, apperr.ErrConsistency) {
				t.Fatalf("err = %v, want ErrConsistency", err)
			}
			var ce *apperr.ConsistencyError
			if !errors.As(err, &ce) || ce.Unattached != tc.lost {
				t.Errorf("unattached = %v, want %d", ce, tc.lost)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	f, _ := Build(sampleRows())
	n := &Node{ID: 7, Name: "q2", ParentID: 3}
	if err := f.Add(n); err != nil {
		t.Fatal(err)
	}
	if err := f.Add(n); err != nil {
		t.Fatal(err)
	}
	p, _ := f.Find(3)
	if diff := cmp.Diff([]int64{4, 7}, p.Children); diff != "" {
		t.Errorf("children after double add:\n%s", diff)
	}

	if err := f.Add(&Node{Name: "unsaved"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unsaved node: err = %v", err)
	}
	if err := f.Add(&Node{ID: 8, ParentID: 42}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown parent: err = %v", err)
	}

	if err := f.Add(&Node{ID: 10, Name: "misc"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1, 2, 10}, f.Roots()); diff != "" {
		t.Errorf("roots:\n%s", diff)
	}
}

func TestDeleteLeavesChildren(t *testing.T) {
	f, _ := Build(sampleRows())
	if !f.Delete(3) {
		t.Fatal("Delete(3) = false")
	}
	if f.Delete(3) {
		t.Fatal("second Delete(3) = true")
	}
	p, _ := f.Find(1)
	if diff := cmp.Diff([]int64{6}, p.Children); diff != "" {
		t.Errorf("children of 1:\n%s", diff)
	}
	if _, ok := f.Find(4); !ok {
		t.Error("child 4 was removed along with its parent")
	}
	if !f.Delete(2) {
		t.Fatal("Delete(2) = false")
	}
	if diff := cmp.Diff([]int64{1}, f.Roots()); diff != "" {
		t.Errorf("roots:\n%s", diff)
	}
}

func TestDescendants(t *testing.T) {
	f, _ := Build(sampleRows())
	if diff := cmp.Diff([]int64{1, 3, 4, 6}, f.Descendants(1)); diff != "" {
		t.Errorf("Descendants(1):\n%s", diff)
	}
	if got := f.Descendants(99); got != nil {
		t.Errorf("Descendants(99) = %v", got)
	}
	sub := f.Subtree(3, 5)
	for _, id := range []int64{3, 4, 5} {
		if _, ok := sub[id]; !ok {
			t.Errorf("Subtree missing %d", id)
		}
	}
	if len(sub) != 3 {
		t.Errorf("Subtree size = %d, want 3", len(sub))
	}
}

func TestReparent(t *testing.T) {
	f, _ := Build(sampleRows())
	if err := f.Reparent(3, 2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{2, 5, 3, 4}, f.Descendants(2)); diff != "" {
		t.Errorf("Descendants(2):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{1, 6}, f.Descendants(1)); diff != "" {
		t.Errorf("Descendants(1):\n%s", diff)
	}
	if err := f.Reparent(4, 0); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1, 2, 4}, f.Roots()); diff != "" {
		t.Errorf("roots:\n%s", diff)
	}
	if err := f.Reparent(4, 77); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown parent: err = %v", err)
	}
	if _, err := Build(f.Rows()); err != nil {
		t.Errorf("forest inconsistent after moves: %v", err)
	}
}

func TestReparentUnderItselfLeavesForestIntact(t *testing.T) {
	f, _ := Build(sampleRows())
	before := f.Rows()
	if err := f.Reparent(3, 3); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Reparent(3, 3): err = %v, want ErrValidation", err)
	}
	if _, ok := f.Find(3); !ok {
		t.Fatal("node 3 lost")
	}
	if f.Len() != 6 {
		t.Errorf("Len = %d, want 6", f.Len())
	}
	if diff := cmp.Diff(before, f.Rows()); diff != "" {
		t.Errorf("Rows changed (-want +got):\n%s", diff)
	}
}

func TestIsDescendant(t *testing.T) {
	f, _ := Build(sampleRows())
	cases := []struct {
		id, anc int64
		want    bool
	}{
		{4, 1, true},
		{4, 3, true},
		{4, 4, true},
		{1, 4, false},
		{5, 1, false},
		{99, 1, false},
	}
	for _, c := range cases {
		if got := f.IsDescendant(c.id, c.anc); got != c.want {
			t.Errorf("IsDescendant(%d, %d) = %v, want %v", c.id, c.anc, got, c.want)
		}
	}
}

func TestFindByNameAndWalk(t *testing.T) {
	f, _ := Build(sampleRows())
	n, ok := f.FindByName("garden")
	if !ok || n.ID != 5 {
		t.Fatalf("FindByName(garden) = %v, %v", n, ok)
	}
	if _, ok := f.FindByName("nope"); ok {
		t.Error("FindByName(nope) found something")
	}
	depths := map[int64]int{}
	f.Walk(func(n *Node, d int) bool {
		depths[n.ID] = d
		return true
	})
	if diff := cmp.Diff(map[int64]int{1: 0, 3: 1, 4: 2, 6: 1, 2: 0, 5: 1}, depths); diff != "" {
		t.Errorf("depths:\n%s", diff)
	}
}
