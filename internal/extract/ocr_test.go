package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOCRArgs(t *testing.T) {
	o := NewOCR("tesseract", "eng+osd", 6, 300)
	assert.Equal(t,
		[]string{"-", "stdout", "--oem", "3", "--psm", "6", "-l", "eng+osd", "--dpi", "300"},
		o.args())
}

func TestOCRArgsOmitsUnsetOptions(t *testing.T) {
	o := NewOCR("", "", 0, 0)
	assert.Equal(t, "tesseract", o.Bin)
	assert.Equal(t, []string{"-", "stdout", "--oem", "3"}, o.args())
}
