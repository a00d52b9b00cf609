package chiadapter_test

import (
	"testing"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/adapter/chiadapter"
	"github.com/iaconlabs/warpcore/router"
)

func TestChiAdapter_ServerSmoke(t *testing.T) {
	adapter.RunServerSmoke(t, func() router.Router {
		return chiadapter.NewChiAdapter()
	})
}
