package banks

import (
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
)

// Registry holds the bank adapters in a fixed probe order. Detection walks
// the slice and the first match wins, so the same statement text always
// selects the same adapter.
type Registry struct {
	adapters []interfaces.BankAdapter
	logger   arbor.ILogger
}

// NewRegistry registers all supported banks. Order matters: adapters with
// the most specific markers probe first.
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		logger: logger,
		adapters: []interfaces.BankAdapter{
			NewBCA(logger),
			NewMandiri(logger),
			NewBNI(logger),
			NewBRI(logger),
			NewCIMB(logger),
			NewDanamon(logger),
			NewPermata(logger),
			NewPanin(logger),
			NewOCBC(logger),
			NewBTN(logger),
			NewMaybank(logger),
		},
	}
}

// Detect returns the first adapter whose markers match the statement text
func (r *Registry) Detect(text string) (interfaces.BankAdapter, bool) {
	for _, adapter := range r.adapters {
		if adapter.Detect(text) {
			r.logger.Debug().
				Str("bank", adapter.BankCode()).
				Msg("Bank adapter matched")
			return adapter, true
		}
	}
	return nil, false
}

// Adapters returns the registered adapters in probe order
func (r *Registry) Adapters() []interfaces.BankAdapter {
	return r.adapters
}
