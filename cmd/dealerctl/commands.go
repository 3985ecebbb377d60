package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	dealerportal "github.com/askgroup/dealerportal"
	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/cart"
	"github.com/askgroup/dealerportal/guard"
	genpass "github.com/sethvargo/go-password/password"
)

type cli struct {
	portal *dealerportal.Portal
	out    io.Writer
	errOut io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"login":          {"sign in with email and password", cmdLogin},
	"register":       {"create an account and sign in", cmdRegister},
	"reset-password": {"replace an account password", cmdResetPassword},
	"logout":         {"forget the stored session", cmdLogout},
	"whoami":         {"show the signed-in user", cmdWhoami},
	"products":       {"list or search the catalog", cmdProducts},
	"checkout":       {"order products as PRODUCT_ID=QTY pairs", cmdCheckout},
	"orders":         {"list your purchase orders", cmdOrders},
	"order":          {"show one purchase order", cmdOrder},
	"invoice":        {"download the PDF invoice of an order", cmdInvoice},
	"route":          {"show the guard decision for a page", cmdRoute},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (c *cli) requireSession() error {
	if !c.portal.Session().IsAuthenticated() {
		return fmt.Errorf("not signed in, run dealerctl login")
	}
	return nil
}

/* ==================== SESSION ==================== */

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", os.Getenv("DEALER_PASSWORD"), "account password (default $DEALER_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" || *pass == "" {
		fmt.Fprintln(c.errOut, "login requires -email and -password")
		return errUsage
	}

	u, err := c.portal.Session().Login(ctx, *email, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signed in as %s (%s), home %s\n", u.Email, u.Role, c.portal.Home())
	return nil
}

func cmdRegister(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("register")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password")
	name := fs.String("name", "", "full name")
	contact := fs.String("contact", "", "contact number")
	generate := fs.Bool("generate-password", false, "generate a strong password and print it")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *generate {
		p, err := genpass.Generate(20, 4, 2, false, false)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		*pass = p
		fmt.Fprintf(c.out, "generated password: %s\n", p)
	}
	if *email == "" || *pass == "" {
		fmt.Fprintln(c.errOut, "register requires -email and -password or -generate-password")
		return errUsage
	}

	u, err := c.portal.Session().Register(ctx, api.RegisterRequest{
		Email:         *email,
		Password:      *pass,
		FullName:      *name,
		ContactNumber: *contact,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "registered and signed in as %s (%s)\n", u.Email, u.Role)
	return nil
}

func cmdResetPassword(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("reset-password")
	email := fs.String("email", "", "account email")
	next := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" || *next == "" {
		fmt.Fprintln(c.errOut, "reset-password requires -email and -new")
		return errUsage
	}
	if err := c.portal.Session().ResetPassword(ctx, *email, *next, *confirm); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "password updated, sign in again")
	return nil
}

func cmdLogout(ctx context.Context, c *cli, _ []string) error {
	c.portal.Session().Logout(ctx)
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func cmdWhoami(_ context.Context, c *cli, _ []string) error {
	u := c.portal.Session().User()
	if u == nil {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", u.ID)
	fmt.Fprintf(tw, "email\t%s\n", u.Email)
	fmt.Fprintf(tw, "role\t%s\n", u.Role)
	fmt.Fprintf(tw, "status\t%s\n", u.Status)
	fmt.Fprintf(tw, "home\t%s\n", c.portal.Home())
	return tw.Flush()
}

/* ==================== CATALOG & ORDERS ==================== */

func cmdProducts(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("products")
	search := fs.String("search", "", "name filter")
	skip := fs.Int("skip", 0, "records to skip")
	limit := fs.Int("limit", 50, "records to return")
	if err := parse(fs, args); err != nil {
		return err
	}

	q := api.ProductQuery{Skip: *skip, Limit: *limit}
	var (
		products []api.Product
		err      error
	)
	if *search != "" {
		products, err = c.portal.API().SearchProducts(ctx, *search, q)
	} else {
		products, err = c.portal.API().ListProducts(ctx, q)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", p.ProductID, p.Name, p.TradePriceInclVAT, p.StockQty)
	}
	return tw.Flush()
}

func cmdCheckout(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("checkout")
	dealerID := fs.String("dealer", "", "dealer id (default: your dealer profile)")
	ref := fs.String("ref", "", "external reference code")
	submit := fs.Bool("submit", false, "submit the order after creating it")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(c.errOut, "checkout requires at least one PRODUCT_ID=QTY")
		return errUsage
	}

	for _, arg := range fs.Args() {
		id, qtyText, ok := strings.Cut(arg, "=")
		qty, err := strconv.Atoi(qtyText)
		if !ok || err != nil || qty <= 0 {
			return fmt.Errorf("bad item %q, want PRODUCT_ID=QTY", arg)
		}
		p, err := c.portal.API().GetProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
		c.portal.Cart().Add(cart.FromProduct(*p, qty))
	}

	order, err := c.portal.Checkout(ctx, dealerportal.CheckoutOptions{
		DealerID:        *dealerID,
		ExternalRefCode: *ref,
		Submit:          *submit,
	})
	if order != nil {
		fmt.Fprintf(c.out, "order %s (%d) %s, total %.2f\n", order.PONumber, order.POID, order.Status, order.TotalIncVAT)
	}
	return err
}

func cmdOrders(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("orders")
	details := fs.Bool("details", false, "fetch every order with its lines")
	workers := fs.Int("workers", dealerportal.DefaultOrderWorkers, "concurrent detail requests")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	orders, err := c.portal.API().MyPurchaseOrders(ctx)
	if err != nil {
		return err
	}
	if *details {
		ids := make([]int, len(orders))
		for i, o := range orders {
			ids[i] = o.POID
		}
		if orders, err = c.portal.LoadOrders(ctx, ids, *workers); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tLINES\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\n", o.POID, o.PONumber, o.Status, len(o.Items), o.TotalIncVAT)
	}
	return tw.Flush()
}

func orderID(c *cli, name string, args []string) (int, []string, error) {
	if len(args) == 0 {
		fmt.Fprintf(c.errOut, "%s requires an order id\n", name)
		return 0, nil, errUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("bad order id %q", args[0])
	}
	return id, args[1:], nil
}

func cmdOrder(ctx context.Context, c *cli, args []string) error {
	id, _, err := orderID(c, "order", args)
	if err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	o, err := c.portal.API().GetPurchaseOrder(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s  %s  dealer %s\n", o.PONumber, o.Status, o.DealerID)
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tUNIT\tTOTAL")
	for _, it := range o.Items {
		name := it.ProductID
		if it.Product != nil {
			name = it.Product.Name
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", name, it.Quantity, it.UnitPrice, it.TotalPrice)
	}
	fmt.Fprintf(tw, "\t\tex VAT\t%.2f\n", o.TotalExVAT)
	fmt.Fprintf(tw, "\t\tVAT %.0f%%\t%.2f\n", o.VATPercent, o.VATAmount)
	fmt.Fprintf(tw, "\t\ttotal\t%.2f\n", o.TotalIncVAT)
	return tw.Flush()
}

func cmdInvoice(ctx context.Context, c *cli, args []string) error {
	id, rest, err := orderID(c, "invoice", args)
	if err != nil {
		return err
	}
	fs := c.flags("invoice")
	out := fs.String("o", "", "output file (default invoice-<id>.pdf)")
	if err := parse(fs, rest); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	pdf, err := c.portal.API().DownloadInvoice(ctx, id)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("invoice-%d.pdf", id)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %s (%d bytes)\n", path, len(pdf))
	return nil
}

/* ==================== GUARD ==================== */

func cmdRoute(_ context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(c.errOut, "route requires a path")
		return errUsage
	}
	for _, target := range args {
		d := c.portal.Check(target)
		if d.Outcome == guard.Redirect {
			fmt.Fprintf(c.out, "%s\tredirect %s\n", target, d.Location())
			continue
		}
		fmt.Fprintf(c.out, "%s\t%s\n", target, d.Outcome)
	}
	return nil
}
