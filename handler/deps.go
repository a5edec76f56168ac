package handler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/bucket"
	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/property"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/user"
)

// Deps is the collaborators every handler needs, wired once in main.go
// and shared across every request. event.Engine and funnel.Engine are
// scoped to a single (owner, bucket) pair, so handlers construct one
// per request from Store rather than holding it here.
type Deps struct {
	Store            store.Store
	Users            *user.Service
	Buckets          *bucket.Service
	Kernel           *kernel.Kernel
	Properties       *property.Service
	Log              zerolog.Logger
	VisitorCookieTTL time.Duration
}
