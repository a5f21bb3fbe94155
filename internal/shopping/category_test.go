package shopping

import "testing"

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"소고기 등심", Meat},
		{"알 수 없는 재료 xyz", Pantry},
		{"양파", Produce},
		{"Chicken Breast", Meat},
		{"우유", Dairy},
		{"식빵", Bakery},
		{"냉동 만두", Frozen},
		{"Frozen Peas", Frozen},
		{"간장", Pantry},
		// produce is checked before meat
		{"양파 돼지볶음", Produce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.name); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.name, got, tt.want)
			}
			if again := Categorize(tt.name); again != Categorize(tt.name) {
				t.Errorf("Categorize(%q) is not deterministic", tt.name)
			}
		})
	}
}

func TestValidCategory(t *testing.T) {
	if !ValidCategory("other") || !ValidCategory("beverages") {
		t.Error("Expected other and beverages to be valid")
	}
	if ValidCategory("snacks") {
		t.Error("Expected snacks to be invalid")
	}
}
