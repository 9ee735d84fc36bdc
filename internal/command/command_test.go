package command

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{
			name: "add with quantity",
			text: "add 3 apples",
			want: Command{Kind: KindAddItem, ItemName: "apples", Quantity: 3},
		},
		{
			name: "add without quantity defaults to one",
			text: "add milk",
			want: Command{Kind: KindAddItem, ItemName: "milk", Quantity: 1},
		},
		{
			name: "add with trailing location",
			text: "bought 2 onions to the pantry",
			want: Command{Kind: KindAddItem, ItemName: "onions", Quantity: 2},
		},
		{
			name: "remove with quantity",
			text: "used 2 eggs",
			want: Command{Kind: KindRemoveItem, ItemName: "eggs", Quantity: 2},
		},
		{
			name: "remove from inventory",
			text: "remove bread from the inventory",
			want: Command{Kind: KindRemoveItem, ItemName: "bread", Quantity: 1},
		},
		{
			name: "query how many",
			text: "how many eggs do I have?",
			want: Command{Kind: KindQueryStock, ItemName: "eggs"},
		},
		{
			name: "query how much left",
			text: "how much rice is left",
			want: Command{Kind: KindQueryStock, ItemName: "rice"},
		},
		{
			name: "query do we have",
			text: "do we have any coffee?",
			want: Command{Kind: KindQueryStock, ItemName: "coffee"},
		},
		{
			name: "list inventory",
			text: "list the inventory",
			want: Command{Kind: KindListItems},
		},
		{
			name: "list pantry",
			text: "what's in my pantry?",
			want: Command{Kind: KindListItems},
		},
		{
			name: "plain chat",
			text: "what's a good recipe for pasta?",
			want: Command{Kind: KindChat},
		},
		{
			name: "case insensitive",
			text: "ADD 5 Bananas",
			want: Command{Kind: KindAddItem, ItemName: "bananas", Quantity: 5},
		},
		{
			name: "whitespace trimmed",
			text: "  add milk  ",
			want: Command{Kind: KindAddItem, ItemName: "milk", Quantity: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
