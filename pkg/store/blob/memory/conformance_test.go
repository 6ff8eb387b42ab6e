package memory

import (
	"testing"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
	blobtesting "github.com/vladfi1/SlippiDump/pkg/store/blob/testing"
)

func TestStoreConformance(t *testing.T) {
	suite := blobtesting.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			return New()
		},
	}
	suite.Run(t)
}
