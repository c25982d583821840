package business

// Item is a mock business record with an owner attribute the engine's
// own-scope decisions are matched against.
type Item struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
}

// Mock datasets standing in for real business storage. Owner ids line up
// with the seeded demo users.
var (
	products = []Item{
		{ID: 1, Name: "Laptop", OwnerID: 1},
		{ID: 2, Name: "Monitor", OwnerID: 2},
		{ID: 3, Name: "Keyboard", OwnerID: 3},
		{ID: 4, Name: "Mouse", OwnerID: 3},
	}
	orders = []Item{
		{ID: 1, Name: "Order #1001", OwnerID: 2},
		{ID: 2, Name: "Order #1002", OwnerID: 3},
		{ID: 3, Name: "Order #1003", OwnerID: 3},
	}
)

func findItem(items []Item, id int64) *Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func filterByOwner(items []Item, ownerID int64) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out
}
