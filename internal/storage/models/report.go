package models

// ItemOutcome records what happened to one input of a batch save.
type ItemOutcome struct {
	Index   int    `json:"index"`
	ID      int64  `json:"id,omitempty"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

type BatchReport struct {
	Items []ItemOutcome `json:"items"`
}

// IDs returns the ids of saved items in input order.
func (r *BatchReport) IDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, item := range r.Items {
		if !item.Skipped {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func (r *BatchReport) Saved() int {
	return len(r.IDs())
}

func (r *BatchReport) Skipped() int {
	return len(r.Items) - r.Saved()
}
