package sd

import (
	"github.com/eikrem/stravadump/pkg/output"
)

// PresentationService handles all presentation logic
type PresentationService struct {
	ol *output.OutputLogger
}

// NewPresentationService creates a new presentation service
func NewPresentationService(ol *output.OutputLogger) *PresentationService {
	return &PresentationService{ol: ol}
}

// ShowProgress displays a progress message
func (ps *PresentationService) ShowProgress(msg string, args ...any) {
	ps.ol.Progress(msg, args...)
}

// ShowStatus displays a status message
func (ps *PresentationService) ShowStatus(msg string, args ...any) {
	ps.ol.Status(msg, args...)
}

// ShowError logs and displays an error
func (ps *PresentationService) ShowError(err error, msg string, args ...any) {
	ps.ol.LogAndShowError(err, msg, args...)
}

// ShowActivityResult displays the outcome of resolving one activity
func (ps *PresentationService) ShowActivityResult(result ActivityResult) {
	ps.ol.ActivityLine(result.ActivityID, output.ActivityInfo{
		DetailCached: result.DetailCached,
		PhotosCached: result.PhotosCached,
		Downloaded:   result.Downloaded,
		OnDisk:       result.AlreadyOnDisk,
		Skipped:      result.Skipped,
		Err:          result.Err,
	})
}

// ShowFinalResults displays the run summary
func (ps *PresentationService) ShowFinalResults(summary *SyncSummary) {
	ps.ol.Result("Synced %d activities: %d photos downloaded, %d skipped, %d errors",
		summary.Activities, summary.Downloaded, summary.Skipped, summary.Errors)
}

// ShowJSONResults outputs the summary as JSON when in JSON mode
func (ps *PresentationService) ShowJSONResults(summary *SyncSummary, jsonMode bool) {
	if jsonMode {
		ps.ol.JSON(summary)
	}
}
