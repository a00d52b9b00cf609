package fiberadapter_test

import (
	"testing"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/adapter/fiberadapter"
	"github.com/iaconlabs/warpcore/router"
)

// net/http -> fasthttp -> net/http round trip over a real listener.
func TestFiberAdapter_ServerSmoke(t *testing.T) {
	adapter.RunServerSmoke(t, func() router.Router {
		return fiberadapter.NewFiberAdapter()
	})
}
