package escrow

import (
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestConfigurationValidate(t *testing.T) {
	cases := map[string]struct {
		c    Configuration
		errs map[string]*errors.Error
	}{
		"all good": {
			c: Configuration{
				Metadata: &weave.Metadata{Schema: 1},
				Admin:    weavetest.NewCondition().Address(),
			},
			errs: map[string]*errors.Error{
				"Metadata": nil,
				"Admin":    nil,
			},
		},
		"certain fields are required": {
			c: Configuration{},
			errs: map[string]*errors.Error{
				"Metadata": errors.ErrMetadata,
				"Admin":    errors.ErrEmpty,
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.c.Validate()
			for field, wantErr := range tc.errs {
				assert.FieldError(t, err, field, wantErr)
			}
		})
	}
}
