// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HTMLFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "article.html"))
	require.NoError(t, err)

	got, err := Parse(context.Background(), data, "text/html; charset=utf-8")
	require.NoError(t, err)

	want := "# Release Notes\n\n" +
		"Version 2 adds **streaming** and [docs](https://example.com/docs).\n\n" +
		"- faster start\n- smaller binary\n\n" +
		"```\ngo install ./...\n```"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "About")
	assert.NotContains(t, got, "color")
}

func TestHTMLToMarkdown_Elements(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"heading levels", "<h3>Title</h3>", "### Title"},
		{"emphasis", "<p>a <em>b</em> c</p>", "a *b* c"},
		{"inline code", "<p>run <code>make</code></p>", "run `make`"},
		{"image", `<img src="cat.png" alt="a cat">`, "![a cat](cat.png)"},
		{"fragment link", `<a href="#top">top</a>`, "top"},
		{"ordered list", "<ol><li>x</li><li>y</li></ol>", "1. x\n2. y"},
		{"nested list", "<ul><li>a<ul><li>b</li></ul></li></ul>", "- a\n  - b"},
		{"blockquote", "<blockquote><p>one</p><p>two</p></blockquote>", "> one\n>\n> two"},
		{"unknown tag passes children", "<custom-el><p>inside</p></custom-el>", "inside"},
		{"line break", "<p>a<br>b</p>", "a\nb"},
		{
			"table",
			"<table><tr><th>k</th><th>v</th></tr><tr><td>a|b</td><td>1</td></tr></table>",
			"| k | v |\n| --- | --- |\n| a\\|b | 1 |",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLToMarkdown([]byte(tt.html), "text/html")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTMLToMarkdown_Charset(t *testing.T) {
	// "café" in ISO-8859-1, declared by a meta tag
	data := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9</p></body></html>")
	got, err := HTMLToMarkdown(data, "text/html")
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <description>News from example</description>
  <item>
    <title>First post</title>
    <link>https://example.com/1</link>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description>
  </item>
</channel>
</rss>`

func TestParse_RSS(t *testing.T) {
	for _, ct := range []string{"application/rss+xml", "application/xml", "text/xml"} {
		t.Run(ct, func(t *testing.T) {
			got, err := Parse(context.Background(), []byte(rssFixture), ct)
			require.NoError(t, err)
			assert.Contains(t, got, "# Example Feed")
			assert.Contains(t, got, "News from example")
			assert.Contains(t, got, "## First post")
			assert.Contains(t, got, "Link: https://example.com/1")
			assert.Contains(t, got, "Date: Mon, 02 Jan 2006 15:04:05 +0000")
			assert.Contains(t, got, "Hello **world**")
		})
	}
}

func TestParse_Atom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Entry one</title>
    <link href="https://example.com/e1"/>
    <updated>2024-05-01T10:00:00Z</updated>
    <content type="text">plain body</content>
  </entry>
</feed>`
	got, err := Parse(context.Background(), []byte(atom), "application/atom+xml")
	require.NoError(t, err)
	assert.Contains(t, got, "# Atom Feed")
	assert.Contains(t, got, "## Entry one")
	assert.Contains(t, got, "Link: https://example.com/e1")
	assert.Contains(t, got, "plain body")
}

func TestParse_PlainXMLPassesThrough(t *testing.T) {
	xml := `<config><name>x</name></config>`
	got, err := Parse(context.Background(), []byte(xml), "application/xml")
	require.NoError(t, err)
	assert.Equal(t, xml, got)
}

func TestParse_CSV(t *testing.T) {
	data := "name,role,team\nAda,engineer,core\n,,\nBob,,infra\n"
	got, err := Parse(context.Background(), []byte(data), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "name: Ada\nrole: engineer\nteam: core\n\nname: Bob\nteam: infra", got)
}

func TestParse_CSVExtraColumns(t *testing.T) {
	got, err := ParseCSV([]byte("a\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\ncolumn 2: 2", got)
}

func TestParse_Passthrough(t *testing.T) {
	tests := []string{
		"text/plain",
		"text/markdown",
		"text/x-gosrc",
		"application/json",
		"application/x-yaml",
		"application/toml",
		"application/x-sh",
	}
	for _, ct := range tests {
		t.Run(ct, func(t *testing.T) {
			got, err := Parse(context.Background(), []byte("content here"), ct)
			require.NoError(t, err)
			assert.Equal(t, "content here", got)
		})
	}
}

func TestParse_DecodesDeclaredCharset(t *testing.T) {
	got, err := Parse(context.Background(), []byte("na\xefve"), "text/plain; charset=ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "naïve", got)
}

func TestParse_OctetStream(t *testing.T) {
	got, err := Parse(context.Background(), []byte("readable"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "readable", got)

	_, err = Parse(context.Background(), []byte{0x00, 0x01, 0xff}, "application/octet-stream")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParse_Unsupported(t *testing.T) {
	for _, ct := range []string{"application/zip", "video/mp4", "audio/mpeg"} {
		_, err := Parse(context.Background(), []byte("x"), ct)
		assert.ErrorIs(t, err, ErrUnsupported, ct)
	}
}

func TestParse_InvalidPDF(t *testing.T) {
	_, err := Parse(context.Background(), []byte("not a pdf"), "application/pdf")
	assert.Error(t, err)
}

func TestParse_PostscriptWithoutConverter(t *testing.T) {
	saved := ps2pdf
	ps2pdf = "docchat-missing-ps2pdf"
	defer func() { ps2pdf = saved }()

	_, err := Parse(context.Background(), []byte("%!PS"), "application/postscript")
	assert.ErrorIs(t, err, ErrNoConverter)
}

func TestParse_PostscriptStopsWithContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script converter")
	}
	script := filepath.Join(t.TempDir(), "slow-ps2pdf")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	saved := ps2pdf
	ps2pdf = script
	defer func() { ps2pdf = saved }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Parse(ctx, []byte("%!PS"), "application/postscript")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
