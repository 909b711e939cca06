package memory

import (
	"testing"

	"github.com/dkeye/Matchbox/internal/store"
	"github.com/dkeye/Matchbox/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
