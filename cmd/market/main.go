package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/safar/sellanything/internal/config"
	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/geo"
	"github.com/safar/sellanything/internal/logging"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/session"
	"github.com/safar/sellanything/internal/store"
	"github.com/sirupsen/logrus"
)

const usage = `usage: market <command> [args]

commands:
  login <email>        log in, creating the account if needed
  logout               forget the saved session
  whoami               show the logged-in user
  roles <r1,r2|none>   set your roles (BUYER, SELLER)
  browse [flags]       list live products (-q, -category, -price, -lat, -lng, -max-km)
  categories           list product categories
  cart                 show your cart
  add <productId>      add a product to your cart
  checkout             order everything in your cart
  orders               list your orders
`

type cli struct {
	repo    *store.Repository
	pointer *session.PointerFile
	out     io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}
	log := logging.New(cfg.Log)

	ctx := context.Background()
	be, err := docstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Open %s store: %v", cfg.Store.Backend, err)
	}
	defer be.Close()

	roles := models.RoleSet(0)
	if cfg.NewUserRoles == "all" {
		roles = models.AllRoles()
	}
	opts := []store.Option{store.WithLogger(log), store.WithNewUserRoles(roles)}
	if cfg.Store.UseIndex {
		opts = append(opts, store.WithIndex(be.Index))
	}

	c := &cli{
		repo:    store.New(be.Store, opts...),
		pointer: session.NewPointerFile(cfg.SessionFile),
		out:     os.Stdout,
	}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "market:", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "login":
		if len(rest) != 1 {
			return errors.New("login needs an email")
		}
		user, err := c.repo.Login(ctx, rest[0])
		if err != nil {
			return err
		}
		if err := c.pointer.Save(user.ID); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "logged in as %s (%s)\n", user.Name, user.Email)
		if user.Roles.Empty() {
			fmt.Fprintln(c.out, "no roles yet: run `market roles BUYER,SELLER`")
		}
		return nil

	case "logout":
		return c.pointer.Clear()

	case "browse":
		return c.browse(ctx, rest)

	case "categories":
		live, err := c.repo.ListLiveProducts(ctx)
		if err != nil {
			return err
		}
		return c.print(store.Categories(live))
	}

	switch cmd {
	case "whoami", "roles", "cart", "add", "checkout", "orders":
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	sess, err := c.repo.RestoreSession(ctx, c.pointer)
	if err != nil {
		if errors.Is(err, store.ErrUnauthenticated) {
			return errors.New("not logged in")
		}
		return err
	}

	switch cmd {
	case "whoami":
		return c.print(sess.User())

	case "roles":
		if len(rest) != 1 {
			return errors.New("roles needs a comma separated list")
		}
		roles, err := parseRoles(rest[0])
		if err != nil {
			return err
		}
		user, err := c.repo.SetRoles(ctx, sess, roles)
		if err != nil {
			return err
		}
		return c.print(user)

	case "cart":
		items, total, err := c.repo.CartItems(ctx, sess)
		if err != nil {
			return err
		}
		for _, p := range items {
			fmt.Fprintf(c.out, "%s  %-30s %s %s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Currency)
		}
		fmt.Fprintf(c.out, "total %s\n", total.StringFixed(2))
		return nil

	case "add":
		if len(rest) != 1 {
			return errors.New("add needs a product id")
		}
		if _, err := c.repo.GetProduct(ctx, rest[0]); err != nil {
			return err
		}
		cart, err := c.repo.AddToCart(ctx, sess, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%d item(s) in cart\n", len(cart.ProductIDs))
		return nil

	case "checkout":
		order, err := c.repo.Checkout(ctx, sess)
		if err != nil && order == nil {
			return err
		}
		fmt.Fprintf(c.out, "order %s placed, total %s\n", order.ID, order.Total().StringFixed(2))
		return err

	case "orders":
		orders, err := c.repo.ListOrdersByBuyer(ctx, sess)
		if err != nil {
			return err
		}
		return c.print(orders)
	}
	return nil
}

func (c *cli) browse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(c.out)
	q := fs.String("q", "", "name contains")
	category := fs.String("category", "all", "category")
	price := fs.String("price", "all", "price range, e.g. 50-200 or 1000-Infinity")
	lat := fs.Float64("lat", 0, "your latitude")
	lng := fs.Float64("lng", 0, "your longitude")
	maxKm := fs.Float64("max-km", 0, "only products within this distance")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pr, err := store.ParsePriceRange(*price)
	if err != nil {
		return err
	}
	f := store.ProductFilter{Query: *q, Category: *category, Price: pr, MaxDistanceKm: *maxKm}

	located := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "lat" || fl.Name == "lng" {
			located = true
		}
	})
	if located {
		p := geo.Point{Lat: *lat, Lng: *lng}
		if !p.Valid() {
			return errors.New("invalid location")
		}
		f.Buyer = &p
	}

	results, err := c.repo.BrowseProducts(ctx, f)
	if err != nil {
		return err
	}
	for _, r := range results {
		line := fmt.Sprintf("%s  %-30s %10s %s  [%s]", r.ID, r.Name, r.Price.StringFixed(2), r.Currency, r.Category)
		if r.DistanceKm != nil {
			line += fmt.Sprintf("  %.1f km away", *r.DistanceKm)
		}
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func parseRoles(s string) (models.RoleSet, error) {
	var roles models.RoleSet
	if strings.EqualFold(s, "none") {
		return roles, nil
	}
	for _, part := range strings.Split(s, ",") {
		r, err := models.ParseRole(strings.ToUpper(strings.TrimSpace(part)))
		if err != nil {
			return 0, err
		}
		roles = roles.With(r)
	}
	return roles, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
