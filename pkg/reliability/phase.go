package reliability

import (
	"context"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

// DuplicatePhaseName is the registry name of the duplicate detection phase
const DuplicatePhaseName = "duplicate-detection"

// ReasonDuplicate is the fault reason for a duplicate message
const ReasonDuplicate = "DuplicateMessage"

// DuplicatePhase returns a phase faulting messages already received
func DuplicatePhase(d *Detector) pipeline.Phase {
	return pipeline.NewPhase(DuplicatePhaseName, func(ctx context.Context, msg *message.Message) (*message.Message, error) {
		if d.Check(d.Key(msg), time.Now()) {
			return nil, pipeline.NewFault(pipeline.CodeSender, ReasonDuplicate)
		}
		return msg, nil
	})
}
