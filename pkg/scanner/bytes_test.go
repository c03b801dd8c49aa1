package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringField(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
		want    string
		ok      bool
	}{
		{desc: "compact", payload: `{"type":"fill","data":{}}`, want: "fill", ok: true},
		{desc: "spaced", payload: "{ \"type\" :\n \"book_update\" }", want: "book_update", ok: true},
		{desc: "missing", payload: `{"data":{}}`},
		{desc: "not a string", payload: `{"type":3}`},
		{desc: "unterminated", payload: `{"type":"fill`},
		{desc: "no colon", payload: `{"type"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := StringField([]byte(tc.payload), []byte(`"type"`))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, string(got))
		})
	}
}
