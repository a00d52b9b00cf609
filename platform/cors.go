package platform

import (
	"fmt"

	"github.com/labstack/echo/v5/middleware"

	"github.com/iaconlabs/warpcore/adapter/echoadapter"
)

// CORSOptions configures EnableCors. Empty Origins allow any origin.
type CORSOptions struct {
	Origins []string
	// OriginFunc is not supported and makes EnableCors fail.
	OriginFunc     func(origin string) bool
	Methods        []string
	AllowedHeaders []string
	ExposedHeaders []string
	Credentials    bool
	// MaxAge is the preflight cache duration in seconds.
	MaxAge int
}

// EnableCors installs Echo's CORS middleware as a raw middleware, so
// preflight requests are answered before any framework middleware runs.
func (a *RouterAdapter) EnableCors(opts CORSOptions) (err error) {
	if opts.OriginFunc != nil {
		return ErrOriginFunc
	}
	origins := opts.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Echo panics on configurations it considers invalid.
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("platform: invalid cors options: %v", v)
		}
	}()

	cors := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     opts.Methods,
		AllowHeaders:     opts.AllowedHeaders,
		ExposeHeaders:    opts.ExposedHeaders,
		AllowCredentials: opts.Credentials,
		MaxAge:           opts.MaxAge,
	})
	a.UseRouter(echoadapter.FromEcho(cors))
	return nil
}
