package security

import "testing"

func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Buy milk", "Buy milk"},
		{"前後の空白を除去", "  Buy milk \n", "Buy milk"},
		{"アンパサンドはエスケープしない", "Tom & Jerry", "Tom & Jerry"},
		{"比較演算子は残る", "a < b", "a < b"},
		{"scriptタグは内容ごと除去", "<script>alert(1)</script>Buy milk", "Buy milk"},
		{"書式タグは除去して内容を残す", "<b>Buy</b> <i>milk</i>", "Buy milk"},
		{"イベント属性付き要素を除去", `<img src=x onerror="alert(1)">milk`, "milk"},
		{"エスケープされたタグも除去", "&lt;script&gt;alert(1)&lt;/script&gt;done", "done"},
		{"日本語", "<p>牛乳を買う</p>", "牛乳を買う"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	inputs := []string{
		"Tom & Jerry",
		"<a href='javascript:alert(1)'>click</a> me",
		"&amp;lt;b&amp;gt;nested",
	}

	for _, in := range inputs {
		once := sanitizer.SanitizeText(in)
		twice := sanitizer.SanitizeText(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
