package engine

import (
	"log/slog"

	"github.com/sirosfoundation/go-soapmep/pkg/mep"
)

func exchangeAttr(id string) slog.Attr {
	return slog.String("exchange_id", id)
}

func operationAttr(name string) slog.Attr {
	return slog.String("operation", name)
}

func slotAttr(slot mep.Slot) slog.Attr {
	return slog.String("slot", slot.String())
}

func errAttr(err error) slog.Attr {
	return slog.Any("error", err)
}
