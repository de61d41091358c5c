package service

import (
	"context"
	"log/slog"

	"github.com/abgdnv/coinmarket/internal/store"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CatalogService manages accounts, shops and shop inventory.
type CatalogService interface {
	// RegisterAccount creates an account with an empty balance. Returns ErrAccountExists.
	RegisterAccount(ctx context.Context, account AccountCreateDto) (*AccountDto, error)

	// GetAccount returns ErrAccountNotFound if the account does not exist.
	GetAccount(ctx context.Context, id string) (*AccountDto, error)

	// AddCoins tops up the balance and returns the updated account.
	AddCoins(ctx context.Context, id string, coins CoinsDto) (*AccountDto, error)

	// CreateShop registers the shop and its product collection. Returns ErrShopExists or ErrInvalidShopName.
	CreateShop(ctx context.Context, shop ShopCreateDto) (*ShopDto, error)

	// AddProduct returns ErrShopNotFound or ErrProductExists.
	AddProduct(ctx context.Context, shopID string, product ProductCreateDto) (*ProductDto, error)

	// UpdateProduct overwrites price and quantity. Returns ErrShopNotFound or ErrProductNotFound.
	UpdateProduct(ctx context.Context, shopID, name string, product ProductUpdateDto) (*ProductDto, error)
}

// CatalogSvc implements CatalogService.
type CatalogSvc struct {
	store    store.Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCatalogService(st store.Store, logger *slog.Logger) *CatalogSvc {
	return &CatalogSvc{
		store:    st,
		validate: NewValidator(),
		logger:   logger.With("component", "catalog-service"),
	}
}

func (s *CatalogSvc) RegisterAccount(ctx context.Context, account AccountCreateDto) (*AccountDto, error) {
	if err := validateStruct(s.validate, account); err != nil {
		return nil, err
	}
	created, err := s.store.CreateAccount(ctx, &db.CreateAccountParams{
		ID:          account.ID,
		DisplayName: account.DisplayName,
		Coins:       decimal.Zero,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Account registered", "account_id", created.ID)
	return toAccountDto(created), nil
}

func (s *CatalogSvc) GetAccount(ctx context.Context, id string) (*AccountDto, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccountDto(account), nil
}

func (s *CatalogSvc) AddCoins(ctx context.Context, id string, coins CoinsDto) (*AccountDto, error) {
	if err := validateStruct(s.validate, coins); err != nil {
		return nil, err
	}
	if _, err := s.store.CreditCoins(ctx, id, coins.Amount); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, id)
}

func (s *CatalogSvc) CreateShop(ctx context.Context, shop ShopCreateDto) (*ShopDto, error) {
	if err := validateStruct(s.validate, shop); err != nil {
		return nil, err
	}
	collection, err := store.CollectionName(shop.Name)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateShop(ctx, &db.CreateShopParams{
		Name:       shop.Name,
		OwnerName:  shop.OwnerName,
		Collection: collection,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Shop created", "shop", created.Name, "collection", created.Collection)
	return toShopDto(created), nil
}

func (s *CatalogSvc) AddProduct(ctx context.Context, shopID string, product ProductCreateDto) (*ProductDto, error) {
	if err := validateStruct(s.validate, product); err != nil {
		return nil, err
	}
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateProduct(ctx, &db.CreateProductParams{
		Collection: shop.Collection,
		Name:       product.Name,
		Price:      product.Price,
		Quantity:   product.Quantity,
		Category:   product.Category,
	})
	if err != nil {
		return nil, err
	}
	return toProductDto(shop.Name, created), nil
}

func (s *CatalogSvc) UpdateProduct(ctx context.Context, shopID, name string, product ProductUpdateDto) (*ProductDto, error) {
	if err := validateStruct(s.validate, product); err != nil {
		return nil, err
	}
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateProduct(ctx, &db.UpdateProductParams{
		Collection: shop.Collection,
		Name:       name,
		Price:      product.Price,
		Quantity:   product.Quantity,
	})
	if err != nil {
		return nil, err
	}
	return toProductDto(shop.Name, updated), nil
}
