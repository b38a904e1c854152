package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkravets/parts_store/internal/models"
)

func product(id uint, name string, price float64) models.Product {
	return models.Product{ID: id, Name: name, Price: price, Availability: models.AvailabilityInStock}
}

func TestAddNewItemSnapshotsNameAndPrice(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 499.99), 2)

	require.Len(t, c.Items, 1)
	require.Equal(t, "GPU", c.Items[0].Name)
	require.Equal(t, 499.99, c.Items[0].Price)
	require.Equal(t, uint(2), c.Items[0].Quantity)
}

func TestAddSameProductSumsQuantities(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 2)
	c.Add(product(1, "GPU", 100), 3)

	require.Len(t, c.Items, 1)
	require.Equal(t, uint(5), c.Items[0].Quantity)
}

func TestAddClampsToMaxQuantity(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 7)
	c.Add(product(1, "GPU", 100), 7)

	require.Equal(t, uint(MaxQuantity), c.Items[0].Quantity)

	var d Cart
	d.Add(product(2, "CPU", 200), 25)
	require.Equal(t, uint(MaxQuantity), d.Items[0].Quantity)
}

func TestAddZeroQuantityMeansOne(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 0)

	require.Equal(t, uint(1), c.Items[0].Quantity)
}

func TestSetQuantityClampsAndRemoves(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 1)

	c.SetQuantity(1, 15)
	require.Equal(t, uint(10), c.Items[0].Quantity)

	c.SetQuantity(1, 4)
	require.Equal(t, uint(4), c.Items[0].Quantity)

	c.SetQuantity(1, 0)
	require.Empty(t, c.Items)
}

func TestSetQuantityUnknownProductIsNoop(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 1)
	c.SetQuantity(99, 5)

	require.Len(t, c.Items, 1)
	require.Equal(t, uint(1), c.Items[0].Quantity)
}

func TestRemove(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 1)
	c.Add(product(2, "CPU", 200), 1)

	c.Remove(1)
	require.Len(t, c.Items, 1)
	require.Equal(t, uint(2), c.Items[0].ProductID)
}

func TestTotalAndCount(t *testing.T) {
	var c Cart
	c.Add(product(1, "GPU", 100), 2)
	c.Add(product(2, "CPU", 250.5), 1)

	require.Equal(t, 450.5, c.Total())
	require.Equal(t, uint(3), c.Count())

	var empty Cart
	require.Zero(t, empty.Total())
	require.Zero(t, empty.Count())
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(time.Hour)

	var c Cart
	c.Add(product(1, "GPU", 100), 2)
	s.Put("session-a", c)

	got := s.Get("session-a")
	require.Len(t, got.Items, 1)
	require.Equal(t, uint(2), got.Items[0].Quantity)

	require.Empty(t, s.Get("session-b").Items)

	s.Clear("session-a")
	require.Empty(t, s.Get("session-a").Items)
}

func TestStoreExpiresSessions(t *testing.T) {
	s := NewStore(10 * time.Millisecond)

	var c Cart
	c.Add(product(1, "GPU", 100), 1)
	s.Put("session-a", c)

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, s.Get("session-a").Items)
}
