package response

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"Investa/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.PhoneInvalid, http.StatusBadRequest},
		{errors.LoggedOut, http.StatusUnauthorized},
		{errors.ProfileIncomplete, http.StatusForbidden},
		{errors.SubscriptionNotFound, http.StatusNotFound},
		{errors.TrialUnavailable.Wrap(errors.Conflict), http.StatusConflict},
		{errors.NetworkUnavailable, http.StatusServiceUnavailable},
		{errors.TooManyRequests, http.StatusTooManyRequests},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
