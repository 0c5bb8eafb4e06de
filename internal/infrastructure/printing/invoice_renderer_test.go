package printing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLabelsFor(t *testing.T) {
	labels, rtl := LabelsFor(language.Hebrew)
	assert.True(t, rtl)
	assert.Equal(t, hebrewLabels, labels)

	labels, rtl = LabelsFor(language.MustParse("en-GB"))
	assert.False(t, rtl)
	assert.Equal(t, englishLabels, labels)

	_, rtl = LabelsFor(language.French)
	assert.False(t, rtl)
}

func TestInvoiceRenderer_Render(t *testing.T) {
	r, err := NewInvoiceRenderer(newFormatter(t, "he", "ILS"), nil)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), testPreview())
	require.NoError(t, err)

	assert.Contains(t, out.HTML, `dir="rtl"`)
	assert.Contains(t, out.HTML, "Dana Levi")
	assert.Contains(t, out.HTML, "₪1,180.00")
	assert.Contains(t, out.HTML, "05/04/2026")
	assert.Contains(t, out.HTML, "6f1c2a34")
	assert.Contains(t, out.HTML, "Levi &amp; Co &lt;Ltd&gt;")
	assert.NotContains(t, out.HTML, "<Ltd>")
}

func TestInvoiceRenderer_English(t *testing.T) {
	r, err := NewInvoiceRenderer(newFormatter(t, "en", "ILS"), nil)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), testPreview())
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, `dir="rtl"`)
	assert.Contains(t, out.HTML, "Invoice preview")
}

func TestInvoiceRenderer_Errors(t *testing.T) {
	r, err := NewInvoiceRenderer(newFormatter(t, "en", "ILS"), nil)
	require.NoError(t, err)

	_, err = r.Render(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, testPreview())
	assert.ErrorIs(t, err, context.Canceled)
}
