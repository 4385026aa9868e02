// Package catalog declares the closed set of customer-support tools —
// machine-readable schemas suitable for an LLM tool-calling contract — and
// the executor dispatch that binds each tool name to the relational store
// and vector retriever and normalizes every result into a uniform
// success/failure envelope.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	validator "github.com/santhosh-tekuri/jsonschema/v5"

	"ecommerce-support-agent/internal/core"
	"ecommerce-support-agent/internal/vectorstore"
)

// ToolSchema is the machine-readable declaration of one catalog tool,
// suitable for serialization to the LLM's tool-calling contract.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// toolDef is the internal pairing of a ToolSchema with its compiled
// validator and bound handler.
type toolDef struct {
	schema   ToolSchema
	compiled *validator.Schema
	handler  func(ctx context.Context, raw json.RawMessage) map[string]any
}

// Registry is the closed catalog of the nine tools. It is an immutable
// value once built — the orchestrator never invokes a name outside it, and
// Build wires every tool's handler to the shared store and vector-store
// instances once at process startup.
type Registry struct {
	tools map[string]toolDef
	order []string // preserves declaration order for Schemas()
}

// Build constructs the closed nine-tool catalog bound to store and vs.
func Build(store *core.Store, vs *vectorstore.Store) *Registry {
	r := &Registry{tools: make(map[string]toolDef)}

	r.register(ToolSchema{
		Name:        "draft_order",
		Description: "Draft an order and validate all required information before creating it. Use this FIRST before create_order to check what information is needed from the customer.",
		Parameters:  reflectParameters(DraftOrderArgs{}),
	}, draftOrderHandler(store))

	r.register(ToolSchema{
		Name:        "create_order",
		Description: "Create a new customer order with products and shipping information. ONLY use this after draft_order confirms all information is complete.",
		Parameters:  reflectParameters(CreateOrderArgs{}),
	}, createOrderHandler(store))

	r.register(ToolSchema{
		Name:        "order_status",
		Description: "Check the status of an existing order",
		Parameters:  reflectParameters(OrderStatusArgs{}),
	}, orderStatusHandler(store))

	r.register(ToolSchema{
		Name:        "product_catalog",
		Description: "Browse the product catalog with optional filtering by category, search query, and price",
		Parameters:  reflectParameters(ProductCatalogArgs{}),
	}, productCatalogHandler(store))

	r.register(ToolSchema{
		Name:        "check_inventory",
		Description: "Check the current inventory/stock level for a specific product",
		Parameters:  reflectParameters(CheckInventoryArgs{}),
	}, checkInventoryHandler(store))

	r.register(ToolSchema{
		Name:        "estimate_shipping",
		Description: "Estimate shipping cost and delivery time based on destination and package details",
		Parameters:  reflectParameters(EstimateShippingArgs{}),
	}, estimateShippingHandler(store))

	r.register(ToolSchema{
		Name:        "create_support_ticket",
		Description: "Create a new customer support ticket for issues or questions",
		Parameters:  reflectParameters(CreateSupportTicketArgs{}),
	}, createSupportTicketHandler(store))

	r.register(ToolSchema{
		Name:        "initiate_return",
		Description: "Initiate a return request for a completed order. IMPORTANT: Use product_ids and quantities to return SPECIFIC items only. If these are not provided, the ENTIRE order will be returned.",
		Parameters:  reflectParameters(InitiateReturnArgs{}),
	}, initiateReturnHandler(store))

	r.register(ToolSchema{
		Name:        "search_knowledge_base",
		Description: "Search the knowledge base for helpful articles and information using semantic similarity",
		Parameters:  reflectParameters(SearchKnowledgeBaseArgs{}),
	}, searchKnowledgeBaseHandler(vs))

	return r
}

func (r *Registry) register(schema ToolSchema, handler func(ctx context.Context, raw json.RawMessage) map[string]any) {
	r.tools[schema.Name] = toolDef{
		schema:   schema,
		compiled: compileValidator(schema.Name, schema.Parameters),
		handler:  handler,
	}
	r.order = append(r.order, schema.Name)
}

// Schemas returns the nine tool declarations in registration order, for the
// orchestrator to hand to the LLM alongside every chat-completions call.
func (r *Registry) Schemas() []ToolSchema {
	out := make([]ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].schema)
	}
	return out
}

// Dispatch executes one tool call and always returns a result envelope —
// never a Go error. Unknown tool names and schema-validation failures are
// reported the same way, without invoking any handler.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) map[string]any {
	def, ok := r.tools[name]
	if !ok {
		return fail(fmt.Sprintf("unknown tool: %s", name))
	}
	if err := validateArguments(def.compiled, args); err != nil {
		return fail(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}
	return def.handler(ctx, args)
}

// ok builds a success envelope, merging fields into {success: true, ...}.
func ok(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// fail builds a failure envelope with a human-readable error the LLM can
// act on: correct its plan, or surface the message to the user.
func fail(errMsg string) map[string]any {
	return map[string]any{"success": false, "error": errMsg}
}

// failWithFields is fail augmented with extra context fields (draft_order's
// missing/provided-field bookkeeping needs this even on its error paths).
func failWithFields(errMsg string, fields map[string]any) map[string]any {
	out := fail(errMsg)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func storeErrMessage(err error) string {
	return err.Error()
}

// --- draft_order -----------------------------------------------------------

func draftOrderHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args DraftOrderArgs
		_ = json.Unmarshal(raw, &args)

		var missing []string
		provided := map[string]any{}

		addStringField := func(name string, v *string) {
			if v == nil || strings.TrimSpace(*v) == "" {
				missing = append(missing, name)
			} else {
				provided[name] = *v
			}
		}
		addStringField("customer_name", args.CustomerName)
		addStringField("customer_email", args.CustomerEmail)
		addStringField("customer_phone", args.CustomerPhone)
		addStringField("street_address", args.StreetAddress)
		addStringField("city", args.City)
		addStringField("state", args.State)
		addStringField("zip_code", args.ZipCode)

		switch {
		case len(args.ProductIDs) == 0:
			missing = append(missing, "product_ids")
		case len(args.Quantities) == 0:
			missing = append(missing, "quantities")
		case len(args.ProductIDs) != len(args.Quantities):
			return failWithFields("Number of products and quantities must match", map[string]any{
				"ready_to_order":  false,
				"missing_fields":  missing,
				"provided_fields": provided,
			})
		default:
			var productsInfo []map[string]any
			totalCost := decimal.Zero
			totalWeight := decimal.Zero

			for i, pid := range args.ProductIDs {
				qty := args.Quantities[i]
				product, err := store.GetProduct(ctx, pid)
				if err != nil {
					return failWithFields(fmt.Sprintf("Product ID %d not found", pid), map[string]any{
						"ready_to_order":  false,
						"missing_fields":  missing,
						"provided_fields": provided,
					})
				}
				if product.Stock < qty {
					return failWithFields(
						fmt.Sprintf("Insufficient stock for %s. Requested: %d, Available: %d", product.Name, qty, product.Stock),
						map[string]any{
							"ready_to_order":  false,
							"missing_fields":  missing,
							"provided_fields": provided,
						})
				}
				qtyDec := decimal.NewFromInt(int64(qty))
				itemTotal := product.Price.Mul(qtyDec)
				itemWeight := product.Weight.Mul(qtyDec)
				totalCost = totalCost.Add(itemTotal)
				totalWeight = totalWeight.Add(itemWeight)

				productsInfo = append(productsInfo, map[string]any{
					"product_id":      pid,
					"name":            product.Name,
					"quantity":        qty,
					"unit_price":      product.Price,
					"item_total":      itemTotal,
					"stock_available": product.Stock,
				})
			}
			provided["products"] = productsInfo
			provided["total_cost"] = totalCost
			provided["total_weight"] = totalWeight
		}

		readyToOrder := len(missing) == 0
		if readyToOrder {
			return ok(map[string]any{
				"ready_to_order": true,
				"message":        "All required information collected. Ready to create order.",
				"order_summary":  provided,
				"next_step":      "Call create_order with the complete information to finalize the order.",
			})
		}

		fieldNames := map[string]string{
			"customer_name":  "customer's full name",
			"customer_email": "customer's email address",
			"customer_phone": "customer's phone number",
			"street_address": "street address",
			"city":           "city",
			"state":          "state",
			"zip_code":       "ZIP code",
			"product_ids":    "products to order",
			"quantities":     "quantities for products",
		}
		descriptions := make([]string, 0, len(missing))
		for _, f := range missing {
			if d, ok := fieldNames[f]; ok {
				descriptions = append(descriptions, d)
			} else {
				descriptions = append(descriptions, f)
			}
		}
		return ok(map[string]any{
			"ready_to_order":  false,
			"message":         "Missing required information: " + strings.Join(descriptions, ", "),
			"missing_fields":  missing,
			"provided_fields": provided,
			"next_step":       "Ask the customer for the missing information.",
		})
	}
}

// --- create_order -----------------------------------------------------------

func createOrderHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args CreateOrderArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for create_order: " + err.Error())
		}
		if len(args.ProductIDs) != len(args.Quantities) {
			return fail("Product IDs and quantities must have the same length")
		}

		orderID, err := store.CreateOrder(ctx,
			core.CustomerFields{Name: args.CustomerName, Email: args.CustomerEmail, Phone: args.CustomerPhone},
			core.AddressFields{Street: args.StreetAddress, City: args.City, State: args.State, Zip: args.ZipCode},
			args.ProductIDs, args.Quantities)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		order, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		return ok(map[string]any{
			"order_id": orderID,
			"order":    order,
			"message":  fmt.Sprintf("Order #%d created successfully for %s", orderID, args.CustomerName),
		})
	}
}

// --- order_status -----------------------------------------------------------

func orderStatusHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args OrderStatusArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for order_status: " + err.Error())
		}

		order, err := store.GetOrderWithProductNames(ctx, args.OrderID)
		if err != nil {
			return fail(fmt.Sprintf("Order #%d not found", args.OrderID))
		}

		return ok(map[string]any{
			"order_id":      args.OrderID,
			"status":        order.Status,
			"order_details": order,
			"message":       fmt.Sprintf("Order #%d status: %s", args.OrderID, order.Status),
		})
	}
}

// --- product_catalog ---------------------------------------------------------

func productCatalogHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args ProductCatalogArgs
		_ = json.Unmarshal(raw, &args)

		var category, search, priceOp string
		var price *decimal.Decimal
		if args.Category != nil {
			category = *args.Category
		}
		if args.SearchQuery != nil {
			search = *args.SearchQuery
		}
		if args.PriceOperator != nil {
			priceOp = string(*args.PriceOperator)
		}
		if args.Price != nil {
			d := decimal.NewFromFloat(*args.Price)
			price = &d
		}

		products, err := store.ListProducts(ctx, category, search, price, priceOp)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		return ok(map[string]any{
			"count":    len(products),
			"products": products,
			"message":  fmt.Sprintf("Found %d product(s)", len(products)),
		})
	}
}

// --- check_inventory ---------------------------------------------------------

func checkInventoryHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args CheckInventoryArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for check_inventory: " + err.Error())
		}

		product, err := store.GetProduct(ctx, args.ProductID)
		if err != nil {
			return fail(fmt.Sprintf("Product #%d not found", args.ProductID))
		}

		inStock := product.Stock > 0
		message := fmt.Sprintf("%s: Out of stock", product.Name)
		if inStock {
			message = fmt.Sprintf("%s: %d units in stock", product.Name, product.Stock)
		}

		return ok(map[string]any{
			"product_id":     args.ProductID,
			"product_name":   product.Name,
			"stock_quantity": product.Stock,
			"in_stock":       inStock,
			"message":        message,
		})
	}
}

// --- estimate_shipping --------------------------------------------------------

func estimateShippingHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args EstimateShippingArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for estimate_shipping: " + err.Error())
		}

		weight := decimal.NewFromFloat(args.Weight)
		estimates, err := store.EstimateShipping(ctx, args.DestinationZip, weight)
		if err != nil {
			return fail(fmt.Sprintf("No shipping rates found for ZIP code: %s", args.DestinationZip))
		}

		lines := make([]string, 0, len(estimates))
		for _, e := range estimates {
			lines = append(lines, fmt.Sprintf("  - %s %s: $%s (%d days)", e.Carrier, e.ServiceType, e.EstimatedCost.StringFixed(2), e.EstimatedDays))
		}
		message := fmt.Sprintf("Shipping options to %s for %v lbs:\n%s", args.DestinationZip, args.Weight, strings.Join(lines, "\n"))

		return ok(map[string]any{
			"destination_zip": args.DestinationZip,
			"weight_lbs":      args.Weight,
			"estimates":       estimates,
			"count":           len(estimates),
			"message":         message,
		})
	}
}

// --- create_support_ticket ----------------------------------------------------

func createSupportTicketHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args CreateSupportTicketArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for create_support_ticket: " + err.Error())
		}

		ticketID, err := store.CreateTicket(ctx, args.CustomerName, args.CustomerEmail, args.IssueDescription, core.TicketPriority(args.Priority))
		if err != nil {
			return fail(storeErrMessage(err))
		}
		ticket, err := store.GetTicket(ctx, ticketID)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		return ok(map[string]any{
			"ticket_id": ticketID,
			"ticket":    ticket,
			"message":   fmt.Sprintf("Support ticket #%d created with %s priority", ticketID, args.Priority),
		})
	}
}

// --- initiate_return -----------------------------------------------------------

func initiateReturnHandler(store *core.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args InitiateReturnArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for initiate_return: " + err.Error())
		}
		if (len(args.ProductIDs) == 0) != (len(args.Quantities) == 0) {
			return fail("Both product_ids and quantities must be provided together, or neither")
		}

		returnID, err := store.CreateReturn(ctx, args.OrderID, args.ReturnReason, args.ProductIDs, args.Quantities)
		if err != nil {
			return fail(storeErrMessage(err))
		}
		ret, err := store.GetReturn(ctx, returnID)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		returnedItems := make([]string, 0, len(ret.Items))
		for _, it := range ret.Items {
			returnedItems = append(returnedItems, fmt.Sprintf("%dx Product %d", it.Quantity, it.ProductID))
		}
		scope := fmt.Sprintf("for %s from order #%d", strings.Join(returnedItems, ", "), args.OrderID)
		if len(args.ProductIDs) == 0 {
			scope = fmt.Sprintf("for entire order #%d (%s)", args.OrderID, strings.Join(returnedItems, ", "))
		}
		message := fmt.Sprintf("Return request #%d created %s. Refund amount: $%s", returnID, scope, ret.RefundTotalAmount.StringFixed(2))

		returnedItemsField := any("all items")
		if len(args.ProductIDs) > 0 {
			returnedItemsField = args.ProductIDs
		}

		return ok(map[string]any{
			"return_id":      returnID,
			"order_id":       args.OrderID,
			"return_info":    ret,
			"returned_items": returnedItemsField,
			"message":        message,
		})
	}
}

// --- search_knowledge_base ----------------------------------------------------

func searchKnowledgeBaseHandler(vs *vectorstore.Store) func(context.Context, json.RawMessage) map[string]any {
	return func(ctx context.Context, raw json.RawMessage) map[string]any {
		var args SearchKnowledgeBaseArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return fail("invalid arguments for search_knowledge_base: " + err.Error())
		}

		threshold := vectorstore.DefaultScoreThreshold()
		hits, err := vs.SearchByText(ctx, args.Query, 5, &threshold)
		if err != nil {
			return fail(storeErrMessage(err))
		}

		articles := make([]map[string]any, 0, len(hits))
		for _, h := range hits {
			articles = append(articles, map[string]any{
				"title":           stringField(h.Payload, "title", "Untitled"),
				"content":         stringField(h.Payload, "content", ""),
				"category":        stringField(h.Payload, "category", ""),
				"relevance_score": h.Score,
				"url":             stringField(h.Payload, "url", ""),
			})
		}

		return ok(map[string]any{
			"query":    args.Query,
			"count":    len(articles),
			"articles": articles,
			"message":  fmt.Sprintf("Found %d relevant article(s)", len(articles)),
		})
	}
}

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
