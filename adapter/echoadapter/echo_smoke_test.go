package echoadapter_test

import (
	"testing"

	"github.com/iaconlabs/warpcore/adapter"
	"github.com/iaconlabs/warpcore/adapter/echoadapter"
	"github.com/iaconlabs/warpcore/router"
)

func TestEchoAdapter_ServerSmoke(t *testing.T) {
	adapter.RunServerSmoke(t, func() router.Router {
		return echoadapter.NewEchoAdapter()
	})
}
