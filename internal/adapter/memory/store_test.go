package memory

import (
	"testing"

	"github.com/pscheid92/moodroom/internal/adapter/storetest"
	"github.com/pscheid92/moodroom/internal/domain"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.RoomStore {
		return NewStore()
	})
}
