// Package mealtype tags recipes with the meal occasions they suit.
package mealtype

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	Breakfast = "breakfast"
	Lunch     = "lunch"
	Dinner    = "dinner"
	Snack     = "snack"
)

// All lists the valid meal types in display order.
var All = []string{Breakfast, Lunch, Dinner, Snack}

// DefaultFallback is assigned when no rule matches.
var DefaultFallback = []string{Lunch, Dinner}

var keywords = map[string][]string{
	Breakfast: {
		"죽", "토스트", "시리얼", "팬케이크", "오트밀", "계란", "샌드위치", "스무디", "그래놀라", "식빵", "잼",
		"porridge", "toast", "cereal", "pancake", "oatmeal", "egg", "sandwich", "smoothie", "granola",
		"breakfast", "waffle", "bacon", "omelet", "omelette", "french toast", "scramble",
	},
	Lunch: {
		"볶음밥", "비빔밥", "국수", "라면", "덮밥", "김밥", "도시락", "우동", "파스타", "샐러드", "냉면", "칼국수", "자장면", "짬뽕",
		"fried rice", "bibimbap", "noodle", "ramen", "rice bowl", "kimbap", "pasta", "salad", "wrap",
		"bowl", "soup", "sandwich", "burger", "taco", "quesadilla",
	},
	Dinner: {
		"스테이크", "찜", "구이", "탕", "찌개", "전골", "갈비", "불고기", "로스트", "삼겹살", "보쌈", "족발", "수육", "샤브샤브",
		"steak", "stew", "roast", "grill", "braised", "curry", "casserole", "lasagna", "lamb", "beef",
		"pork", "chicken roast", "pot roast", "ribs",
	},
	Snack: {
		"떡볶이", "떡", "쿠키", "케이크", "빵", "머핀", "와플", "디저트", "과자", "타르트", "브라우니", "마카롱", "푸딩",
		"아이스크림", "파전", "감자전", "해물전", "김치전", "녹두전", "호떡", "붕어빵", "튀김",
		"cookie", "cake", "muffin", "waffle", "dessert", "snack", "brownie", "tart", "pie", "pudding",
		"ice cream", "pastry", "scone", "donut", "doughnut", "macaron", "fudge", "candy",
	},
}

var categorySeeds = map[string][]string{
	"breakfast": {Breakfast},
	"dessert":   {Snack},
	"side":      {Lunch, Dinner},
	"starter":   {Snack},
	"appetizer": {Snack},
}

type matcher struct {
	mealType string
	keyword  string
	// whole word match; Korean keywords match anywhere
	word bool
}

var matchers = compile()

func compile() []matcher {
	var out []matcher
	for _, mt := range All {
		for _, kw := range keywords[mt] {
			out = append(out, matcher{mealType: mt, keyword: kw, word: !isKorean(kw)})
		}
	}
	return out
}

// Korean text has no usable \b boundaries, so those keywords fall back to
// substring containment.
func isKorean(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}

// containsWord reports whether kw occurs in text with no word character on
// either side. Word characters are Unicode letters, digits and '_', so
// "egg" does not match "eggplant" and "pie" does not match "pie를".
func containsWord(text, kw string) bool {
	for from := 0; from <= len(text)-len(kw); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(kw)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Classifier assigns meal types. The zero value uses DefaultFallback.
type Classifier struct {
	Fallback []string
}

// New returns a Classifier using fallback when nothing matches. Unknown
// labels in fallback are dropped; an empty result means DefaultFallback.
func New(fallback []string) Classifier {
	var valid []string
	for _, f := range fallback {
		if IsValid(f) {
			valid = append(valid, f)
		}
	}
	return Classifier{Fallback: valid}
}

// Classify returns the sorted meal types a recipe fits. It is pure and
// always returns a non-empty subset of All.
func (c Classifier) Classify(title, originalTitle string, categories, tags []string) []string {
	parts := make([]string, 0, 2+len(categories)+len(tags))
	parts = append(parts, title, originalTitle)
	parts = append(parts, categories...)
	parts = append(parts, tags...)
	text := strings.ToLower(strings.Join(parts, " "))

	found := make(map[string]bool)
	for _, cat := range categories {
		for _, mt := range categorySeeds[strings.ToLower(strings.TrimSpace(cat))] {
			found[mt] = true
		}
	}

	for _, m := range matchers {
		if found[m.mealType] {
			continue
		}
		if m.word && containsWord(text, m.keyword) || !m.word && strings.Contains(text, m.keyword) {
			found[m.mealType] = true
		}
	}

	if len(found) == 0 {
		fallback := c.Fallback
		if len(fallback) == 0 {
			fallback = DefaultFallback
		}
		for _, mt := range fallback {
			found[mt] = true
		}
	}

	out := make([]string, 0, len(found))
	for mt := range found {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// Classify uses the default fallback.
func Classify(title, originalTitle string, categories, tags []string) []string {
	return Classifier{}.Classify(title, originalTitle, categories, tags)
}

// IsValid reports whether s is one of the four meal types.
func IsValid(s string) bool {
	for _, mt := range All {
		if s == mt {
			return true
		}
	}
	return false
}

// Order gives breakfast < lunch < dinner < snack; unknown values sort last.
func Order(s string) int {
	for i, mt := range All {
		if s == mt {
			return i
		}
	}
	return len(All)
}
