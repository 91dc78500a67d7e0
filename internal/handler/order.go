package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/valmera/orderdesk/internal/domain/order"
)

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("number")
	e.Str(o.Number)
	e.FieldStart("placedAt")
	encodeTime(e, o.PlacedAt)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("discountPercent")
	encodeNullDecimal(e, o.DiscountPercent, 2)
	e.FieldStart("grossTotal")
	encodeNullDecimal(e, o.GrossTotal, 2)
	e.FieldStart("netTotal")
	encodeNullDecimal(e, o.NetTotal, 2)
	e.FieldStart("version")
	e.Int64(o.Version)
	e.ObjEnd()
}

func encodeOrderItem(e *jx.Encoder, item *order.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("orderId")
	e.Str(item.OrderID)
	e.FieldStart("catalogItemId")
	e.Str(item.CatalogItemID)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	e.FieldStart("version")
	e.Int64(item.Version)
	e.FieldStart("createdAt")
	encodeTime(e, item.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, item.UpdatedAt)
	e.ObjEnd()
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		encodeOrder(e, &details.Order)
		e.FieldStart("items")
		e.ArrStart()
		for i := range details.Items {
			encodeOrderItem(e, &details.Items[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req order.CreateOrderRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "number":
			v, err := d.Str()
			req.Number = v
			return err
		case "discountPercent":
			return decodeNullDecimal(d, &req.DiscountPercent)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req order.UpdateOrderRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			s := order.Status(v)
			req.Status = &s
			return err
		case "discountPercent":
			var nd decimal.NullDecimal
			if err := decodeNullDecimal(d, &nd); err != nil {
				return err
			}
			req.DiscountPercent = &nd
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) attachOrderItem(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req := order.AttachItemRequest{OrderID: r.PathValue("id")}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "catalogItemId":
			v, err := d.Str()
			req.CatalogItemID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orders.AttachItem(r.Context(), req)
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("item")
		encodeOrderItem(e, result.Item)
		e.FieldStart("catalogItem")
		encodeCatalogItem(e, result.CatalogItem)
		e.ObjEnd()
	})
}

// mapOrderError converts order domain errors to HTTP responses. Not-found
// conditions map to 404, guard and validation failures to 400, and a failed
// save (including an optimistic version conflict) to 409 so the caller can
// retry the whole attachment.
func (h *Handler) mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		onfErr *order.OrderNotFoundError
		cnfErr *order.CatalogItemNotFoundError
		naErr  *order.ItemNotActiveError
		iqErr  *order.InvalidQuantityError
		idErr  *order.InvalidDiscountError
		isErr  *order.InvalidStatusError
		sfErr  *order.SaveFailedError
	)

	switch {
	case errors.As(err, &onfErr):
		writeError(w, http.StatusNotFound, onfErr.Error())
	case errors.As(err, &cnfErr):
		writeError(w, http.StatusNotFound, cnfErr.Error())
	case errors.As(err, &naErr):
		writeError(w, http.StatusBadRequest, naErr.Error())
	case errors.As(err, &iqErr):
		writeError(w, http.StatusBadRequest, iqErr.Error())
	case errors.As(err, &idErr):
		writeError(w, http.StatusBadRequest, idErr.Error())
	case errors.As(err, &isErr):
		writeError(w, http.StatusBadRequest, isErr.Error())
	case errors.As(err, &sfErr):
		writeError(w, http.StatusConflict, "order save failed")
	default:
		writeInternalError(w, r, err)
	}
}

// decodeNullDecimal parses a nullable decimal; JSON null clears the value.
func decodeNullDecimal(d *jx.Decoder, out *decimal.NullDecimal) error {
	if d.Next() == jx.Null {
		*out = decimal.NullDecimal{}
		return d.Null()
	}

	var v decimal.Decimal
	if err := decodeDecimal(d, &v); err != nil {
		return err
	}
	*out = decimal.NullDecimal{Decimal: v, Valid: true}
	return nil
}
