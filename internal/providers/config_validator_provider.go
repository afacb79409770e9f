package providers

import (
	"fmt"

	"github.com/gookit/validate"

	"juju/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	if cv.conf.Cache.Enabled && cv.conf.Cache.Size <= 0 {
		return fmt.Errorf("invalid config: cache.size must be positive when the cache is enabled")
	}
	return nil
}
