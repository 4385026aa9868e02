package catalog

import "github.com/invopop/jsonschema"

// PriceOperator is the product_catalog price-comparison enum.
type PriceOperator string

// JSONSchemaExtend pins the enum values invopop/jsonschema reflects for
// PriceOperator fields, keeping the wire schema, the Go type, and the
// runtime validator from drifting apart.
func (PriceOperator) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Enum = []any{"gt", "lt", "eq"}
}

// Priority is the support-ticket urgency enum.
type Priority string

func (Priority) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Enum = []any{"low", "medium", "high", "urgent"}
}

// DraftOrderArgs backs the draft_order tool. Every field is optional — the
// tool's job is to report what is still missing, not to require it upfront.
type DraftOrderArgs struct {
	CustomerName  *string `json:"customer_name,omitempty" jsonschema_description:"Full name of the customer (if provided)"`
	CustomerEmail *string `json:"customer_email,omitempty" jsonschema_description:"Email address of the customer (if provided)"`
	CustomerPhone *string `json:"customer_phone,omitempty" jsonschema_description:"Phone number of the customer (if provided)"`
	StreetAddress *string `json:"street_address,omitempty" jsonschema_description:"Street address including house/building number and street name (if provided)"`
	City          *string `json:"city,omitempty" jsonschema_description:"City name (if provided)"`
	State         *string `json:"state,omitempty" jsonschema_description:"State name or abbreviation (if provided)"`
	ZipCode       *string `json:"zip_code,omitempty" jsonschema_description:"ZIP or postal code (if provided)"`
	ProductIDs    []int   `json:"product_ids,omitempty" jsonschema_description:"List of product IDs to order (if provided)"`
	Quantities    []int   `json:"quantities,omitempty" jsonschema_description:"List of quantities for each product (if provided)"`
}

// CreateOrderArgs backs the create_order tool. Every field is required —
// the catalog convention is that the planner calls draft_order first, though
// that ordering is not enforced here.
type CreateOrderArgs struct {
	CustomerName  string `json:"customer_name" jsonschema_description:"Full name of the customer"`
	CustomerEmail string `json:"customer_email" jsonschema_description:"Email address of the customer"`
	CustomerPhone string `json:"customer_phone" jsonschema_description:"Phone number of the customer"`
	StreetAddress string `json:"street_address" jsonschema_description:"Street address including house/building number and street name"`
	City          string `json:"city" jsonschema_description:"City name"`
	State         string `json:"state" jsonschema_description:"State name or abbreviation"`
	ZipCode       string `json:"zip_code" jsonschema_description:"ZIP or postal code"`
	ProductIDs    []int  `json:"product_ids" jsonschema_description:"List of product IDs to order"`
	Quantities    []int  `json:"quantities" jsonschema_description:"List of quantities for each product (must match length of product_ids)"`
}

// OrderStatusArgs backs the order_status tool.
type OrderStatusArgs struct {
	OrderID int `json:"order_id" jsonschema_description:"The unique order ID"`
}

// ProductCatalogArgs backs the product_catalog tool.
type ProductCatalogArgs struct {
	Category      *string        `json:"category,omitempty" jsonschema_description:"Filter products by category (e.g., electronics, clothing, home)"`
	SearchQuery   *string        `json:"search_query,omitempty" jsonschema_description:"Search products by name or description"`
	Price         *float64       `json:"price,omitempty" jsonschema_description:"Price value to filter by (used together with price_operator)"`
	PriceOperator *PriceOperator `json:"price_operator,omitempty" jsonschema_description:"Comparison operator for price filter: 'gt' = greater than, 'lt' = less than, 'eq' = equal to"`
}

// CheckInventoryArgs backs the check_inventory tool.
type CheckInventoryArgs struct {
	ProductID int `json:"product_id" jsonschema_description:"The unique product ID"`
}

// EstimateShippingArgs backs the estimate_shipping tool.
type EstimateShippingArgs struct {
	DestinationZip string  `json:"destination_zip" jsonschema_description:"Destination ZIP/postal code"`
	Weight         float64 `json:"weight" jsonschema_description:"Package weight in pounds"`
}

// CreateSupportTicketArgs backs the create_support_ticket tool.
type CreateSupportTicketArgs struct {
	CustomerName     string   `json:"customer_name" jsonschema_description:"Name of the customer"`
	CustomerEmail    string   `json:"customer_email" jsonschema_description:"Email address of the customer"`
	IssueDescription string   `json:"issue_description" jsonschema_description:"Detailed description of the issue or question"`
	Priority         Priority `json:"priority" jsonschema_description:"Priority level of the ticket"`
}

// InitiateReturnArgs backs the initiate_return tool. ProductIDs and
// Quantities must both be supplied or both omitted — omitting both means
// "return the entire order".
type InitiateReturnArgs struct {
	OrderID      int    `json:"order_id" jsonschema_description:"The order ID to return"`
	ReturnReason string `json:"return_reason" jsonschema_description:"Reason for the return (e.g., defective, wrong item, changed mind)"`
	ProductIDs   []int  `json:"product_ids,omitempty" jsonschema_description:"REQUIRED for partial returns: list of specific product IDs to return. Omit (with quantities) to return the entire order."`
	Quantities   []int  `json:"quantities,omitempty" jsonschema_description:"REQUIRED for partial returns: quantities for each product being returned, same length and order as product_ids."`
}

// SearchKnowledgeBaseArgs backs the search_knowledge_base tool.
type SearchKnowledgeBaseArgs struct {
	Query string `json:"query" jsonschema_description:"Search query describing what information is needed"`
}
