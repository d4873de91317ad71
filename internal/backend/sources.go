package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/ec-checkout/internal/domain/checkout"
	"github.com/example/ec-checkout/internal/domain/order"
)

var ErrUserIDRequired = errors.New("user id is required")

// LoadCart reads the shopper's persisted cart.
func (c *Client) LoadCart(ctx context.Context, p checkout.Principal) ([]order.Item, error) {
	if p.UserID == "" {
		return nil, &Error{Op: "failed to load cart", Err: ErrUserIDRequired}
	}
	var items []order.Item
	err := c.do(ctx, "failed to load cart", http.MethodGet, "/api/cart/"+url.PathEscape(p.UserID), p.Token, nil, func(body []byte) error {
		dtos, err := decodeList[cartItemDTO](body, "products")
		if err != nil {
			return err
		}
		items = make([]order.Item, 0, len(dtos))
		for _, d := range dtos {
			items = append(items, d.toItem())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) LoadAddresses(ctx context.Context, p checkout.Principal) ([]order.Address, error) {
	if p.UserID == "" {
		return nil, &Error{Op: "failed to load addresses", Err: ErrUserIDRequired}
	}
	path := fmt.Sprintf("/api/users/%s/addresses", url.PathEscape(p.UserID))
	var addresses []order.Address
	err := c.do(ctx, "failed to load addresses", http.MethodGet, path, p.Token, nil, func(body []byte) error {
		dtos, err := decodeList[addressDTO](body, "addresses")
		if err != nil {
			return err
		}
		addresses = make([]order.Address, 0, len(dtos))
		for _, d := range dtos {
			addresses = append(addresses, d.toAddress())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// ResolveUserID looks up the backend user id for the identity-provider id
// carried by the principal.
func (c *Client) ResolveUserID(ctx context.Context, p checkout.Principal) (string, error) {
	external := firstNonEmpty(p.ExternalID, p.Subject)
	if external == "" {
		return "", &Error{Op: "failed to fetch user", Err: ErrUserIDRequired}
	}
	path := "/api/users/objectIdexport?fbUserId=" + url.QueryEscape(external)
	var userID string
	err := c.do(ctx, "failed to fetch user", http.MethodGet, path, p.Token, nil, func(body []byte) error {
		var user struct {
			MongoID string `json:"_id"`
			ID      string `json:"id"`
		}
		if err := json.Unmarshal(body, &user); err != nil {
			return err
		}
		userID = firstNonEmpty(user.MongoID, user.ID)
		if userID == "" {
			return errors.New("user id missing")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
