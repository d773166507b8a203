package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
)

// Variant is the customer's flower selection for a line.
type Variant struct {
	FlowerType string `json:"flower_type"`
	Color      string `json:"color"`
}

func (v Variant) normalized() Variant {
	return Variant{
		FlowerType: strings.ToLower(strings.TrimSpace(v.FlowerType)),
		Color:      strings.ToLower(strings.TrimSpace(v.Color)),
	}
}

type AddonSelection struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// LineInput is one requested line, either added to a cart or sent straight
// to checkout.
type LineInput struct {
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Variant   Variant          `json:"variant"`
	WrapperID *uint            `json:"wrapper_id,omitempty"`
	Addons    []AddonSelection `json:"addons,omitempty"`
}

// normalizeAddons merges duplicate addon ids and orders them by id, so the
// same addon set always yields the same line identity.
func normalizeAddons(addons []AddonSelection) []AddonSelection {
	if len(addons) == 0 {
		return nil
	}
	merged := make(map[uint]int, len(addons))
	for _, a := range addons {
		merged[a.ProductID] += a.Quantity
	}
	out := make([]AddonSelection, 0, len(merged))
	for id, qty := range merged {
		out = append(out, AddonSelection{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

type ResolvedAddon struct {
	Product  *model.Product
	Quantity int
}

// ResolvedLine is a line whose product, wrapper and addons have been loaded
// from the catalog.
type ResolvedLine struct {
	ItemType model.CartItemType
	Product  *model.Product
	Quantity int
	Variant  Variant
	Wrapper  *model.Product
	Addons   []ResolvedAddon
}

// ItemTotal is the price of one unit of the composite line.
func (l ResolvedLine) ItemTotal() float64 {
	total := l.Product.Price
	if l.Wrapper != nil {
		total += l.Wrapper.Price
	}
	for _, a := range l.Addons {
		total += a.Product.Price * float64(a.Quantity)
	}
	return total
}

func (l ResolvedLine) LineKey() string {
	wrapperID := uint(0)
	if l.Wrapper != nil {
		wrapperID = l.Wrapper.ID
	}
	addons := make([]string, 0, len(l.Addons))
	for _, a := range l.Addons {
		addons = append(addons, fmt.Sprintf("%d:%d", a.Product.ID, a.Quantity))
	}
	v := l.Variant.normalized()
	return fmt.Sprintf("%s:%d|%s|%s|w%d|%s",
		l.ItemType, l.Product.ID, v.FlowerType, v.Color, wrapperID, strings.Join(addons, ","))
}

// validateVariant checks the selection against the options a product offers.
// Products without configured options accept any selection.
func validateVariant(p *model.Product, v Variant) *ValidationError {
	verr := &ValidationError{}
	if v.FlowerType != "" && p.FlowerTypes != "" && !containsOption(p.FlowerTypes, v.FlowerType) {
		verr.add("variant.flower_type", fmt.Sprintf("%q is not offered for %s", v.FlowerType, p.Name))
	}
	if v.Color != "" && p.Colors != "" && !containsOption(p.Colors, v.Color) {
		verr.add("variant.color", fmt.Sprintf("%q is not offered for %s", v.Color, p.Name))
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func containsOption(options, value string) bool {
	for _, o := range strings.Split(options, ",") {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

type lineResolver struct {
	productRepo repository.ProductRepository
}

// resolve loads the product, wrapper and addons a line refers to and checks
// that each can be sold in that role. Stock is left to the caller.
func (r lineResolver) resolve(ctx context.Context, in LineInput) (ResolvedLine, error) {
	verr := &ValidationError{}
	if in.ProductID == 0 {
		verr.add("product_id", "is required")
	}
	if in.Quantity <= 0 {
		verr.add("quantity", "must be greater than 0")
	}
	for i, a := range in.Addons {
		if a.ProductID == 0 || a.Quantity <= 0 {
			verr.add(fmt.Sprintf("addons[%d]", i), "product_id and a positive quantity are required")
		}
	}
	if err := verr.orNil(); err != nil {
		return ResolvedLine{}, err
	}

	addons := normalizeAddons(in.Addons)
	ids := []uint{in.ProductID}
	if in.WrapperID != nil {
		ids = append(ids, *in.WrapperID)
	}
	for _, a := range addons {
		ids = append(ids, a.ProductID)
	}

	products, err := r.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return ResolvedLine{}, persistenceError("load products", err)
	}

	product, err := sellable(products, in.ProductID)
	if err != nil {
		return ResolvedLine{}, err
	}

	line := ResolvedLine{
		ItemType: model.CartItemTypeProduct,
		Product:  product,
		Quantity: in.Quantity,
		Variant:  in.Variant,
	}

	switch product.Kind {
	case model.ProductKindWrapper:
		return ResolvedLine{}, newValidationError("product_id", "wrappers can only be chosen for a bouquet")
	case model.ProductKindAddon:
		if in.WrapperID != nil || len(addons) > 0 {
			return ResolvedLine{}, newValidationError("product_id", "an addon cannot carry its own wrapper or addons")
		}
		line.ItemType = model.CartItemTypeAddon
		return line, nil
	}

	if verr := validateVariant(product, in.Variant); verr != nil {
		return ResolvedLine{}, verr
	}

	if in.WrapperID != nil {
		wrapper, err := sellable(products, *in.WrapperID)
		if err != nil {
			return ResolvedLine{}, err
		}
		if wrapper.Kind != model.ProductKindWrapper {
			return ResolvedLine{}, newValidationError("wrapper_id", fmt.Sprintf("%s is not a wrapper", wrapper.Name))
		}
		line.Wrapper = wrapper
	}

	for _, a := range addons {
		addon, err := sellable(products, a.ProductID)
		if err != nil {
			return ResolvedLine{}, err
		}
		if addon.Kind != model.ProductKindAddon {
			return ResolvedLine{}, newValidationError("addons", fmt.Sprintf("%s is not an addon", addon.Name))
		}
		line.Addons = append(line.Addons, ResolvedAddon{Product: addon, Quantity: a.Quantity})
	}

	return line, nil
}

func sellable(products map[uint]*model.Product, id uint) (*model.Product, error) {
	p, ok := products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if !p.Purchasable() {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
	}
	return p, nil
}
