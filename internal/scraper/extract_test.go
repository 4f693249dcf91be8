package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{
			name:     "Shekel symbol before number",
			text:     "מחיר מבצע: ₪ 249.90 בלבד",
			expected: 249.90,
		},
		{
			name:     "Shekel symbol after number",
			text:     "רק 199₪ להיום",
			expected: 199,
		},
		{
			name:     "Dollar price",
			text:     "Now only $39.99",
			expected: 39.99,
		},
		{
			name:     "Thousands separator",
			text:     "₪1,299.00",
			expected: 1299,
		},
		{
			name:     "Trailing dot stripped",
			text:     "המחיר הוא 120. ₪",
			expected: 120,
		},
		{
			name:     "No currency token",
			text:     "משלוח תוך 14 ימים",
			expected: 0,
		},
		{
			name:     "Empty text",
			text:     "",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ExtractPrice(tt.text), 0.001)
		})
	}
}

func TestExtractShippingTime(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Hebrew range",
			text:     "המשלוח יגיע תוך 14-21 ימי עסקים",
			expected: "14-21 ימי",
		},
		{
			name:     "English business days",
			text:     "Delivery in 10-20 business days",
			expected: "10-20 business days",
		},
		{
			name:     "No shipping mention",
			text:     "איסוף עצמי בלבד",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractShippingTime(tt.text))
		})
	}
}

func TestExtractBusinessID(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Standard form",
			text:     "ח.פ. 515123456 רחוב הרצל 1",
			expected: "515123456",
		},
		{
			name:     "With colon",
			text:     "ח.פ: 514987654",
			expected: "514987654",
		},
		{
			name:     "No dots",
			text:     "חפ 515000111",
			expected: "515000111",
		},
		{
			name:     "Too short",
			text:     "ח.פ. 12345",
			expected: "",
		},
		{
			name:     "Absent",
			text:     "אין פרטי עסק",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractBusinessID(tt.text))
		})
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Star number",
			text:     "חייגו *2345 לשירות",
			expected: "*2345",
		},
		{
			name:     "Mobile with dash",
			text:     "טלפון: 052-1234567",
			expected: "052-1234567",
		},
		{
			name:     "Landline with space",
			text:     "03 1234567",
			expected: "03 1234567",
		},
		{
			name:     "No phone",
			text:     "צרו קשר במייל בלבד",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPhone(tt.text))
		})
	}
}

func TestHasScarcityPhrase(t *testing.T) {
	assert.True(t, HasScarcityPhrase("רק 3 נותרו במלאי!"))
	assert.True(t, HasScarcityPhrase("Hurry, only 2 left in stock"))
	assert.False(t, HasScarcityPhrase("מלאי מלא בכל הצבעים"))
}

func TestMentionsWhatsApp(t *testing.T) {
	assert.True(t, MentionsWhatsApp("הזמינו דרך WhatsApp עכשיו"))
	assert.True(t, MentionsWhatsApp("https://wa.me/972521234567"))
	assert.False(t, MentionsWhatsApp("צרו קשר בטלפון"))
}

func TestTruncateHebrew(t *testing.T) {
	// Rune-based bound; Hebrew is two bytes per letter and byte slicing
	// would split a character.
	s := "שלום עולם"
	assert.Equal(t, "שלום", truncate(s, 4))
	assert.Equal(t, s, truncate(s, 100))
}
