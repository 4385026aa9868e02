package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ListShippingRates returns the rate table, optionally filtered by carrier
// and/or service type (both matched case-insensitively), ordered by carrier
// then service type.
func (s *Store) ListShippingRates(ctx context.Context, carrier, serviceType string) ([]ShippingRate, error) {
	query := `
		SELECT id, carrier, service_type, base_rate, per_pound_rate, estimated_days, destination_zip
		FROM agent_shipping_rates WHERE 1=1`
	var args []any
	if carrier != "" {
		query += fmt.Sprintf(" AND LOWER(carrier) = LOWER($%d)", len(args)+1)
		args = append(args, carrier)
	}
	if serviceType != "" {
		query += fmt.Sprintf(" AND LOWER(service_type) = LOWER($%d)", len(args)+1)
		args = append(args, serviceType)
	}
	query += " ORDER BY carrier, service_type, destination_zip"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query shipping rates", err)
	}
	defer rows.Close()

	var rates []ShippingRate
	for rows.Next() {
		var r ShippingRate
		if err := rows.Scan(&r.ID, &r.Carrier, &r.ServiceType, &r.BaseRate, &r.PerPoundRate, &r.EstimatedDays, &r.DestinationZip); err != nil {
			return nil, newErr(KindUpstream, "failed to scan shipping rate", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(KindUpstream, "shipping rate row iteration failed", err)
	}
	return rates, nil
}

// ratesForZip returns every rate on file for an exact destination zip,
// ordered by estimated delivery speed.
func (s *Store) ratesForZip(ctx context.Context, destinationZip string) ([]ShippingRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, carrier, service_type, base_rate, per_pound_rate, estimated_days, destination_zip
		FROM agent_shipping_rates WHERE destination_zip = $1 ORDER BY estimated_days
	`, destinationZip)
	if err != nil {
		return nil, newErr(KindUpstream, "failed to query shipping rates", err)
	}
	defer rows.Close()

	var rates []ShippingRate
	for rows.Next() {
		var r ShippingRate
		if err := rows.Scan(&r.ID, &r.Carrier, &r.ServiceType, &r.BaseRate, &r.PerPoundRate, &r.EstimatedDays, &r.DestinationZip); err != nil {
			return nil, newErr(KindUpstream, "failed to scan shipping rate", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(KindUpstream, "shipping rate row iteration failed", err)
	}
	if len(rates) == 0 {
		return nil, newErr(KindNotFound, fmt.Sprintf("no shipping rates for zip %s", destinationZip), nil)
	}
	return rates, nil
}

// EstimateShipping quotes every rate on file for destinationZip: cost is
// base_rate + per_pound_rate * weight, so for a fixed rate the cost is
// monotonically non-decreasing in weight.
func (s *Store) EstimateShipping(ctx context.Context, destinationZip string, weight decimal.Decimal) ([]ShippingEstimate, error) {
	rates, err := s.ratesForZip(ctx, destinationZip)
	if err != nil {
		return nil, err
	}
	estimates := make([]ShippingEstimate, 0, len(rates))
	for _, r := range rates {
		cost := r.BaseRate.Add(r.PerPoundRate.Mul(weight))
		estimates = append(estimates, ShippingEstimate{
			Carrier:       r.Carrier,
			ServiceType:   r.ServiceType,
			EstimatedCost: cost,
			EstimatedDays: r.EstimatedDays,
		})
	}
	// Days ascending, then cost ascending. The SQL already orders by days;
	// the cost tiebreak can only be applied here because cost depends on the
	// requested weight.
	sort.SliceStable(estimates, func(i, j int) bool {
		if estimates[i].EstimatedDays != estimates[j].EstimatedDays {
			return estimates[i].EstimatedDays < estimates[j].EstimatedDays
		}
		return estimates[i].EstimatedCost.LessThan(estimates[j].EstimatedCost)
	})
	return estimates, nil
}
