package conversation

import (
	"context"
	"encoding/json"
)

// SnapshotStorage keeps the latest encoded snapshot. Load reports an absent
// snapshot with errors.ErrNotFound.
type SnapshotStorage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type Snapshot struct {
	Messages  []Message        `json:"messages"`
	Durations map[string]int64 `json:"durations"`
}

func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	out := *s
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	if out.Durations == nil {
		out.Durations = map[string]int64{}
	}
	return json.Marshal(out)
}

func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Durations == nil {
		s.Durations = map[string]int64{}
	}
	return s, nil
}
