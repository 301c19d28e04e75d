package model

// Option is one selectable answer of a question. Value is the score
// contribution when the option is chosen.
type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Question is a single-choice catalog question. A question belongs to exactly
// one test; Options keep their presentation order.
type Question struct {
	ID       string   `json:"id"`
	TestID   string   `json:"test_id,omitempty"`
	Prompt   string   `json:"prompt"`
	Options  []Option `json:"options"`
	OrderNum int      `json:"order_num"`
}

// Option returns the option stored at index choice. ok is false when choice
// does not address an option of q.
func (q *Question) Option(choice int) (opt Option, ok bool) {
	if choice < 0 || choice >= len(q.Options) {
		return Option{}, false
	}
	return q.Options[choice], true
}

// MaxScore returns the highest total a subject can reach on q.
func (q *Question) MaxScore() int {
	best := 0
	for i, o := range q.Options {
		if i == 0 || o.Value > best {
			best = o.Value
		}
	}
	return best
}
