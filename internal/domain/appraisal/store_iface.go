package appraisal

import (
	"context"
	"time"

	"appraisal/internal/domain/timer"
)

type StoreAPI interface {
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	UpsertEmployee(ctx context.Context, emp Employee) error
	GetTrack(ctx context.Context, employeeID string) (Track, error)
	CreateTrack(ctx context.Context, t Track) error
	UpdateTrack(ctx context.Context, t Track) error
	ListTracks(ctx context.Context) ([]Track, error)
	GetDetails(ctx context.Context, employeeID string) (Details, error)
	UpsertDetails(ctx context.Context, d Details) error
	ArchiveEmployee(ctx context.Context, batch ArchiveBatch) (string, error)
	ListArchives(ctx context.Context, employeeID string) ([]ArchiveRecord, error)
	GetArchive(ctx context.Context, archiveID string) (ArchiveRecord, error)
}

// MarkerStore persists reviewer capability markers.
type MarkerStore interface {
	HasMarker(ctx context.Context, employeeID string, c Capability) (bool, error)
	AddMarker(ctx context.Context, employeeID string, c Capability) error
	RemoveMarker(ctx context.Context, employeeID string, c Capability) error
	ListHolders(ctx context.Context, c Capability) ([]string, error)
}

// Notifier delivers one in-app notification (and best-effort email).
type Notifier interface {
	Create(ctx context.Context, recipientID, kind, title, body string) error
}

// TimerReader exposes the submission windows and the once-per-day
// reminder ledger.
type TimerReader interface {
	Get(ctx context.Context, scope timer.Scope) (timer.Timer, error)
	ClaimReminder(ctx context.Context, scope timer.Scope, day time.Time) (bool, error)
}
