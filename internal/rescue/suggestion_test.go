package rescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCopy(t *testing.T) {
	tests := []struct {
		src, dest string
		want      string
	}{
		{"/lf/a", "/vol/1/msg.eml", "cp '/lf/a' '/vol/1/msg.eml'"},
		{"/lf/with space", "/vol/1/x.msg", "cp '/lf/with space' '/vol/1/x.msg'"},
		{"/lf/it's", "/vol/o'neil.msg", `cp '/lf/it'\''s' '/vol/o'\''neil.msg'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCopy(tt.src, tt.dest))
	}
}

func TestFormatPlaceholder(t *testing.T) {
	assert.Equal(t, "echo 'EMAIL_EMPTY_CONTENT' > '/vol/1/msg.eml'", FormatPlaceholder("/vol/1/msg.eml"))
	assert.Equal(t, `echo 'EMAIL_EMPTY_CONTENT' > '/vol/a'\''b'`, FormatPlaceholder("/vol/a'b"))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "copy", ActionCopy.String())
	assert.Equal(t, "placeholder", ActionPlaceholder.String())
	assert.Equal(t, "Action(9)", Action(9).String())
}
