package reconcile

import (
	"bytes"
	"encoding/json"
)

// Reason classifies a finished run
type Reason string

const (
	ReasonNoSemverTags     Reason = "NO_SEMVER_TAGS_FOUND"
	ReasonFailedToRemapTag Reason = "FAILED_TO_REMAP_TAG"
	ReasonNoChanges        Reason = "NO_CHANGES"
	ReasonMappedTags       Reason = "MAPPED_TAGS"
)

// State is what happened to a floating tag
type State string

const (
	StateCreated State = "created"
	StateUpdated State = "updated"
)

// Outcome records the mutation applied to one floating tag
type Outcome struct {
	State     State  `json:"state"`
	OldTarget string `json:"oldTarget"`
	NewTarget string `json:"newTarget"`
}

// Outcomes is an insertion-ordered map from floating tag name to Outcome.
// The zero value is ready to use.
type Outcomes struct {
	keys  []string
	byTag map[string]Outcome
}

// Set records out for tag, keeping tag's original position if it was already set.
func (o *Outcomes) Set(tag string, out Outcome) {
	if o.byTag == nil {
		o.byTag = make(map[string]Outcome)
	}
	if _, ok := o.byTag[tag]; !ok {
		o.keys = append(o.keys, tag)
	}
	o.byTag[tag] = out
}

// Get returns the outcome recorded for tag.
func (o *Outcomes) Get(tag string) (Outcome, bool) {
	out, ok := o.byTag[tag]
	return out, ok
}

// Keys returns tag names in processing order.
func (o *Outcomes) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of recorded outcomes.
func (o *Outcomes) Len() int {
	return len(o.keys)
}

// MarshalJSON encodes the outcomes as an object whose keys keep processing order.
func (o *Outcomes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.byTag[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the terminal report of a run
type Result struct {
	Succeeded bool      `json:"succeeded"`
	Reason    Reason    `json:"reason"`
	Message   string    `json:"message"`
	Data      *Outcomes `json:"data"`
}

// Action is the mutation chosen for a major line
type Action int

const (
	ActionSkip Action = iota
	ActionCreate
	ActionRetarget
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRetarget:
		return "retarget"
	default:
		return "skip"
	}
}

// Decision is the planned change for one major line
type Decision struct {
	Major    int
	Release  string // latest release tag of the line
	Floating string // v<major>
	Action   Action
	Old      string // current floating tag target, empty when it does not exist
	New      string // release target
}

// Plan lists decisions in ascending major order
type Plan struct {
	Decisions []Decision
}

// Changes counts decisions that mutate the repository
func (p *Plan) Changes() int {
	n := 0
	for _, d := range p.Decisions {
		if d.Action != ActionSkip {
			n++
		}
	}
	return n
}
