package drapto

import (
	"fmt"

	draptolib "github.com/five82/drapto"
)

// reporter forwards the encode-relevant Drapto callbacks to a Progress func
// and ignores the batch and hardware chatter.
type reporter struct {
	progress Progress
}

func (r *reporter) Hardware(draptolib.HardwareSummary)             {}
func (r *reporter) Initialization(draptolib.InitializationSummary) {}
func (r *reporter) CropResult(draptolib.CropSummary)               {}
func (r *reporter) EncodingConfig(draptolib.EncodingConfigSummary) {}
func (r *reporter) BatchStarted(draptolib.BatchStartInfo)          {}
func (r *reporter) FileProgress(draptolib.FileProgressContext)     {}
func (r *reporter) BatchComplete(draptolib.BatchSummary)           {}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	r.progress(float64(s.Percent), s.Stage)
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.progress(0, fmt.Sprintf("archive encode started (%d frames)", totalFrames))
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.progress(float64(s.Percent), "encoding archive")
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	if !s.Passed {
		r.progress(100, "archive validation reported issues")
	}
}

func (r *reporter) EncodingComplete(draptolib.EncodingOutcome) {
	r.progress(100, "archive encoded")
}

func (r *reporter) Warning(message string) {
	r.progress(-1, "archive warning: "+message)
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.progress(-1, "archive error: "+e.Title+": "+e.Message)
}

func (r *reporter) OperationComplete(message string) {
	r.progress(100, message)
}

var _ draptolib.Reporter = (*reporter)(nil)
