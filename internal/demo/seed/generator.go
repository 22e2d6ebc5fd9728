package seed

import (
	"math"
	"math/rand"
	"time"
)

var (
	products  = []string{"Laptop", "Mouse", "Keyboard", "Monitor", "Headphones", "Dock", "Webcam"}
	customers = []string{"Acme Corp", "Tech Solutions", "Global Industries", "Startup Inc", "Enterprise Ltd", "Northwind", "Initech"}
	statuses  = []string{"pending", "processing", "completed", "cancelled"}
)

// Generator produces deterministic synthetic sales and orders for a seed.
type Generator struct {
	rnd   *rand.Rand
	start time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: day("2024-02-01"),
	}
}

func (g *Generator) NextSale(id int) []any {
	product := pickOne(g.rnd, products)
	soldOn := g.start.AddDate(0, 0, g.rnd.Intn(365))
	return []any{
		id,
		product,
		g.pickAmount(product),
		soldOn,
		g.rnd.Intn(5) + 1,
		g.rnd.Intn(5) + 1,
		soldOn.Add(time.Duration(g.rnd.Intn(12)+8) * time.Hour),
	}
}

func (g *Generator) NextOrder(id int) []any {
	placed := g.start.AddDate(0, 0, g.rnd.Intn(365)).Add(time.Duration(g.rnd.Intn(24)) * time.Hour)
	return []any{
		id,
		pickOne(g.rnd, customers),
		round2(100 + g.rnd.Float64()*4900),
		pickOne(g.rnd, statuses),
		placed,
		placed.Add(time.Duration(g.rnd.Intn(72)) * time.Hour),
	}
}

func (g *Generator) pickAmount(product string) float64 {
	switch product {
	case "Laptop":
		return round2(900 + g.rnd.Float64()*900)
	case "Monitor", "Dock":
		return round2(150 + g.rnd.Float64()*350)
	default:
		return round2(15 + g.rnd.Float64()*185)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
