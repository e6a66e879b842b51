package mock

import (
	"context"
	"fmt"

	"github.com/bakkerme/adhunter/internal/core"
)

// Fetcher serves canned records keyed by reference. Refs listed in Panics
// make Fetch panic.
type Fetcher struct {
	Records map[core.AdReference]*core.AdRecord
	Errors  map[core.AdReference]error
	Panics  map[core.AdReference]string
	Calls   []core.AdReference
}

func (f *Fetcher) Fetch(ctx context.Context, ref core.AdReference) (*core.AdRecord, error) {
	_ = ctx
	f.Calls = append(f.Calls, ref)
	if msg, ok := f.Panics[ref]; ok {
		panic(msg)
	}
	if err, ok := f.Errors[ref]; ok {
		return nil, err
	}
	record, ok := f.Records[ref]
	if !ok {
		return nil, fmt.Errorf("no record for %s", ref)
	}
	out := *record
	return &out, nil
}
