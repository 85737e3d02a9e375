package simplepost

import "fmt"

// ItemAction is what the engine attempted for one image.
type ItemAction string

const (
	ActionRemove ItemAction = "remove"
	ActionInsert ItemAction = "insert"
)

// ItemStatus is the outcome of one attempted item.
type ItemStatus string

const (
	StatusDone ItemStatus = "done"
	// StatusSkipped means the blob removal was skipped because the URL does
	// not resolve to a key in the configured store. The row is still removed.
	StatusSkipped ItemStatus = "skipped"
	StatusFailed  ItemStatus = "failed"
)

// ItemOutcome records what happened to a single image during a mutation.
type ItemOutcome struct {
	Action  ItemAction `json:"action"`
	ImageID int64      `json:"image_id,omitempty"`
	URL     string     `json:"url"`
	Key     string     `json:"key,omitempty"`
	Status  ItemStatus `json:"status"`
	Err     error      `json:"-"`
}

func (o ItemOutcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s (key %q): %v", o.Action, o.URL, o.Key, o.Err)
	}
	return fmt.Sprintf("%s %s (key %q): %s", o.Action, o.URL, o.Key, o.Status)
}

// MutationReport is returned by Update and Delete.
type MutationReport struct {
	PostID  int64         `json:"post_id"`
	Slug    string        `json:"slug"`
	Items   []ItemOutcome `json:"items,omitempty"`
	Changed []string      `json:"changed_fields,omitempty"`
}

// Failed returns the outcomes with StatusFailed.
func (r *MutationReport) Failed() []ItemOutcome {
	if r == nil {
		return nil
	}
	var out []ItemOutcome
	for _, item := range r.Items {
		if item.Status == StatusFailed {
			out = append(out, item)
		}
	}
	return out
}

// partialFailure returns a *PartialFailure for op when any item failed, nil otherwise.
func (r *MutationReport) partialFailure(op string) error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &PartialFailure{Op: op, Slug: r.Slug, Failures: failed}
}

// CreatePostResult identifies the post written by Create.
type CreatePostResult struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}
