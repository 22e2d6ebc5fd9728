package seed

import "time"

type columnKind int

const (
	kindInteger columnKind = iota
	kindText
	kindReal
	kindDate
	kindTimestamp
	kindBool
)

type column struct {
	name       string
	kind       columnKind
	primaryKey bool
	notNull    bool
}

type table struct {
	name    string
	columns []column
	rows    [][]any
}

var baseCreatedAt = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func day(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func createdAt(id int) time.Time {
	return baseCreatedAt.Add(time.Duration(id) * time.Hour)
}

// demoTables returns the fixed demo dataset. Table order is the creation order.
func demoTables() []table {
	return []table{
		{
			name: "users",
			columns: []column{
				{name: "id", kind: kindInteger, primaryKey: true},
				{name: "username", kind: kindText, notNull: true},
				{name: "email", kind: kindText, notNull: true},
				{name: "created_at", kind: kindTimestamp},
				{name: "is_active", kind: kindBool},
			},
			rows: [][]any{
				{1, "john_doe", "john.doe@example.com", createdAt(1), true},
				{2, "jane_smith", "jane.smith@example.com", createdAt(2), true},
				{3, "bob_wilson", "bob.wilson@example.com", createdAt(3), true},
				{4, "alice_brown", "alice.brown@example.com", createdAt(4), true},
				{5, "charlie_davis", "charlie.davis@example.com", createdAt(5), false},
			},
		},
		{
			name: "employees",
			columns: []column{
				{name: "id", kind: kindInteger, primaryKey: true},
				{name: "first_name", kind: kindText, notNull: true},
				{name: "last_name", kind: kindText, notNull: true},
				{name: "email", kind: kindText, notNull: true},
				{name: "department", kind: kindText},
				{name: "salary", kind: kindReal},
				{name: "hire_date", kind: kindDate},
				{name: "created_at", kind: kindTimestamp},
			},
			rows: [][]any{
				{1, "John", "Doe", "john.doe@company.com", "Engineering", 75000.0, day("2022-02-15"), createdAt(1)},
				{2, "Jane", "Smith", "jane.smith@company.com", "Marketing", 65000.0, day("2022-03-20"), createdAt(2)},
				{3, "Bob", "Wilson", "bob.wilson@company.com", "Sales", 70000.0, day("2021-12-10"), createdAt(3)},
				{4, "Alice", "Brown", "alice.brown@company.com", "Engineering", 80000.0, day("2021-09-05"), createdAt(4)},
				{5, "Charlie", "Davis", "charlie.davis@company.com", "HR", 60000.0, day("2022-04-01"), createdAt(5)},
			},
		},
		{
			name: "sales",
			columns: []column{
				{name: "id", kind: kindInteger, primaryKey: true},
				{name: "product_name", kind: kindText, notNull: true},
				{name: "amount", kind: kindReal, notNull: true},
				{name: "sale_date", kind: kindDate, notNull: true},
				{name: "customer_id", kind: kindInteger},
				{name: "employee_id", kind: kindInteger},
				{name: "created_at", kind: kindTimestamp},
			},
			rows: [][]any{
				{1, "Laptop", 1200.0, day("2024-01-15"), 1, 3, createdAt(1)},
				{2, "Mouse", 25.0, day("2024-01-16"), 2, 3, createdAt(2)},
				{3, "Keyboard", 80.0, day("2024-01-17"), 3, 3, createdAt(3)},
				{4, "Monitor", 300.0, day("2024-01-18"), 1, 3, createdAt(4)},
				{5, "Headphones", 150.0, day("2024-01-19"), 4, 3, createdAt(5)},
			},
		},
		{
			name: "orders",
			columns: []column{
				{name: "id", kind: kindInteger, primaryKey: true},
				{name: "customer_name", kind: kindText, notNull: true},
				{name: "total_amount", kind: kindReal, notNull: true},
				{name: "status", kind: kindText},
				{name: "created_at", kind: kindTimestamp},
				{name: "updated_at", kind: kindTimestamp},
			},
			rows: [][]any{
				{1, "Acme Corp", 1500.0, "completed", createdAt(1), createdAt(1)},
				{2, "Tech Solutions", 800.0, "processing", createdAt(2), createdAt(2)},
				{3, "Global Industries", 2200.0, "pending", createdAt(3), createdAt(3)},
				{4, "Startup Inc", 450.0, "completed", createdAt(4), createdAt(4)},
				{5, "Enterprise Ltd", 3200.0, "processing", createdAt(5), createdAt(5)},
			},
		},
	}
}

// TableNames lists the demo tables in creation order.
func TableNames() []string {
	tables := demoTables()
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.name)
	}
	return names
}
