package app

import (
	"errors"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// SimplePolicy evicts on any send failure; a full queue is reported as a slow consumer.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(err error) domain.CloseReason {
	if errors.Is(err, core.ErrBackpressure) {
		return domain.ReasonSlowConsumer
	}
	return domain.ReasonServerError
}
