package memstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

const (
	usersFile    = "users.json"
	productsFile = "products.json"
	ordersFile   = "orders.json"
	statsFile    = "stats.json"

	// currentFile names the generation directory that holds the committed
	// collections. Replacing it with one rename is the commit point.
	currentFile = "CURRENT"
)

// writeCollection is swapped in tests to fail a write mid-commit.
var writeCollection = writeJSON

func genName(n int64) string { return fmt.Sprintf("gen-%06d", n) }

// load reads the generation CURRENT points at. Without CURRENT the
// collections are read from dir itself; that layout is generation 0.
func load(dir string) (data, int64, error) {
	d := newData()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return d, 0, err
	}

	src, gen := dir, int64(0)
	b, err := os.ReadFile(filepath.Join(dir, currentFile))
	switch {
	case err == nil:
		name := strings.TrimSpace(string(b))
		if _, err := fmt.Sscanf(name, "gen-%d", &gen); err != nil || gen <= 0 {
			return d, 0, fmt.Errorf("decode %s: bad generation %q", currentFile, name)
		}
		src = filepath.Join(dir, name)
	case !errors.Is(err, fs.ErrNotExist):
		return d, 0, err
	}

	var users []orders.User
	if err := readJSON(filepath.Join(src, usersFile), &users); err != nil {
		return d, 0, err
	}
	for _, u := range users {
		d.users[u.ID] = u
	}

	var products []orders.Product
	if err := readJSON(filepath.Join(src, productsFile), &products); err != nil {
		return d, 0, err
	}
	for _, p := range products {
		d.products[p.ID] = p
		d.seq[orders.SeqProduct] = max(d.seq[orders.SeqProduct], p.Seq)
	}

	var list []orders.Order
	if err := readJSON(filepath.Join(src, ordersFile), &list); err != nil {
		return d, 0, err
	}
	for _, o := range list {
		d.orders[o.ID] = o
		if o.ExternalID != "" {
			d.byExt[o.ExternalID] = o.ID
		}
		d.seq[orders.SeqOrder] = max(d.seq[orders.SeqOrder], o.Seq)
	}

	if err := readJSON(filepath.Join(src, statsFile), &d.stats); err != nil {
		return d, 0, err
	}
	return d, gen, nil
}

// persist writes all four collections into generation gen and then points
// CURRENT at it. Until that rename the previous generation stays committed,
// so a failure or crash leaves either the old or the new state, never a mix.
func persist(dir string, gen int64, d data) error {
	users := make([]orders.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	genDir := filepath.Join(dir, genName(gen))
	if err := os.RemoveAll(genDir); err != nil {
		return err
	}
	if err := os.Mkdir(genDir, 0o755); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(genDir)
		}
	}()

	files := []struct {
		name string
		v    any
	}{
		{usersFile, users},
		{productsFile, d.productList()},
		{ordersFile, d.orderList()},
		{statsFile, d.stats},
	}
	for _, f := range files {
		if err := writeCollection(filepath.Join(genDir, f.name), f.v); err != nil {
			return err
		}
	}
	if err := syncDir(genDir); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, currentFile), []byte(genName(gen)+"\n")); err != nil {
		return err
	}
	committed = true
	// the rename is done; a failed directory sync cannot undo it
	_ = syncDir(dir)
	if gen > 1 {
		_ = os.RemoveAll(filepath.Join(dir, genName(gen-1)))
	}
	return nil
}

func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

// writeFile replaces path through a synced temp file and a rename.
func writeFile(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
