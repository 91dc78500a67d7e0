package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/valmera/orderdesk/internal/domain/catalog"
)

func encodeCatalogItem(e *jx.Encoder, item *catalog.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("name")
	e.Str(item.Name)
	e.FieldStart("description")
	e.Str(item.Description)
	e.FieldStart("unitPrice")
	e.Str(item.UnitPrice.StringFixed(2))
	e.FieldStart("kind")
	e.Str(string(item.Kind))
	e.FieldStart("active")
	e.Bool(item.Active)
	e.FieldStart("version")
	e.Int64(item.Version)
	e.FieldStart("createdAt")
	encodeTime(e, item.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, item.UpdatedAt)
	e.ObjEnd()
}

func (h *Handler) listCatalogItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range items {
			encodeCatalogItem(e, &items[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getCatalogItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "catalog item not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCatalogItem(e, item)
	})
}

func (h *Handler) createCatalogItem(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req := catalog.CreateItemRequest{Active: true}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			req.Name = v
			return err
		case "description":
			v, err := d.Str()
			req.Description = v
			return err
		case "unitPrice":
			return decodeDecimal(d, &req.UnitPrice)
		case "kind":
			v, err := d.Str()
			req.Kind = catalog.Kind(v)
			return err
		case "active":
			v, err := d.Bool()
			req.Active = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	item, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.mapCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCatalogItem(e, item)
	})
}

func (h *Handler) updateCatalogItem(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req catalog.UpdateItemRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			req.Name = &v
			return err
		case "description":
			v, err := d.Str()
			req.Description = &v
			return err
		case "unitPrice":
			var price decimal.Decimal
			if err := decodeDecimal(d, &price); err != nil {
				return err
			}
			req.UnitPrice = &price
			return nil
		case "kind":
			v, err := d.Str()
			k := catalog.Kind(v)
			req.Kind = &k
			return err
		case "active":
			v, err := d.Bool()
			req.Active = &v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.catalog.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.mapCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCatalogItem(e, item)
	})
}

func (h *Handler) deleteCatalogItem(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.mapCatalogError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// mapCatalogError converts catalog domain errors to HTTP responses.
func (h *Handler) mapCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		upErr *catalog.InvalidUnitPriceError
		kErr  *catalog.InvalidKindError
	)

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "catalog item not found")
	case errors.Is(err, catalog.ErrReferenced):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upErr):
		writeError(w, http.StatusBadRequest, upErr.Error())
	case errors.As(err, &kErr):
		writeError(w, http.StatusBadRequest, kErr.Error())
	default:
		writeInternalError(w, r, err)
	}
}

// decodeDecimal parses a decimal from either a JSON string or a raw number.
func decodeDecimal(d *jx.Decoder, out *decimal.Decimal) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		*out = v
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return err
		}
		*out = v
		return nil
	default:
		return errors.New("expected string or number")
	}
}
