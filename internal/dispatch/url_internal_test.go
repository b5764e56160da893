package dispatch

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLanguage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		in       string
		lang     string
		want     string
		inverted bool
	}{{
		name:     "plain_none",
		in:       "https://a.example/?p=1",
		lang:     "",
		want:     "https://a.example/?p=1",
		inverted: false,
	}, {
		name:     "plain_any",
		in:       "https://a.example/?p=1",
		lang:     "fr",
		want:     "https://a.example/fr/?p=1",
		inverted: false,
	}, {
		name:     "plain_pt",
		in:       "https://a.example/?p=1",
		lang:     "pt",
		want:     "https://a.example/?p=1",
		inverted: false,
	}, {
		name:     "inverted_none",
		in:       "https://inv.example/?p=1",
		lang:     "",
		want:     "https://inv.example/en/?p=1",
		inverted: true,
	}, {
		name:     "inverted_en",
		in:       "https://inv.example/?p=1",
		lang:     "en",
		want:     "https://inv.example/en/?p=1",
		inverted: true,
	}, {
		name:     "inverted_pt",
		in:       "https://inv.example/?p=1",
		lang:     "pt",
		want:     "https://inv.example/?p=1",
		inverted: true,
	}, {
		name:     "inverted_other",
		in:       "https://inv.example/?p=1",
		lang:     "es",
		want:     "https://inv.example/es/?p=1",
		inverted: true,
	}, {
		name:     "deep_path",
		in:       "https://a.example/random",
		lang:     "es",
		want:     "https://a.example/es/random",
		inverted: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tc.in)
			require.NoError(t, err)

			applyLanguage(u, tc.lang, tc.inverted)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestDecorateQuery(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		query  url.Values
		name   string
		raw    string
		linkID string
		want   string
	}{{
		query:  url.Values{},
		name:   "defaults",
		raw:    "p=2",
		linkID: "best_b_2",
		want:   "p=2&utm_source=redron&utm_medium=broadcast&utm_campaign=best_b_2",
	}, {
		query:  url.Values{},
		name:   "empty_raw",
		raw:    "",
		linkID: "random_a",
		want:   "utm_source=redron&utm_medium=broadcast&utm_campaign=random_a",
	}, {
		query:  url.Values{},
		name:   "no_link_id",
		raw:    "",
		linkID: "",
		want:   "utm_source=redron&utm_medium=broadcast&utm_campaign=direct",
	}, {
		query: url.Values{
			"utm_source": []string{"mail"},
			"utm_medium": []string{"cpc"},
			"fbclid":     []string{"fb1"},
			"utm_term":   []string{"melhores apps"},
		},
		name:   "passthrough",
		raw:    "p=2",
		linkID: "best_b_2",
		want: "p=2&utm_source=mail&utm_medium=cpc&utm_campaign=best_b_2" +
			"&utm_term=melhores+apps&fbclid=fb1",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, decorateQuery(tc.raw, tc.query, tc.linkID))
		})
	}
}
