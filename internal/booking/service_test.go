package booking_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/ubongpr7/music-booking/internal/booking"
	"github.com/ubongpr7/music-booking/internal/inventory"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
)

// MockDBLayer mocks the store. RunInTx hands fn the configured tx target so
// the inventory ledger can run against a real database when a test needs it.
type MockDBLayer struct {
	mock.Mock
	tx bun.IDB
}

func (m *MockDBLayer) RunInTx(ctx context.Context, fn func(ctx context.Context, idb bun.IDB) error) error {
	return fn(ctx, m.tx)
}

func (m *MockDBLayer) GetEventSection(ctx context.Context, idb bun.IDB, id string) (*models.EventSection, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventSection), args.Error(1)
}

func (m *MockDBLayer) GetVenueSection(ctx context.Context, idb bun.IDB, id string) (*models.VenueSection, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VenueSection), args.Error(1)
}

func (m *MockDBLayer) InsertEventSection(ctx context.Context, idb bun.IDB, section *models.EventSection) error {
	args := m.Called(section)
	return args.Error(0)
}

func (m *MockDBLayer) GetBooking(ctx context.Context, idb bun.IDB, id string) (*models.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) InsertBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateBooking(ctx context.Context, idb bun.IDB, booking *models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockDBLayer) BookingReferenceExists(ctx context.Context, idb bun.IDB, reference string) (bool, error) {
	args := m.Called(reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) BookingsForUser(ctx context.Context, idb bun.IDB, userID string) ([]models.Booking, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockDBLayer) GetGroup(ctx context.Context, idb bun.IDB, id string) (*models.BookingGroup, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingGroup), args.Error(1)
}

func (m *MockDBLayer) GetGroupByReference(ctx context.Context, idb bun.IDB, reference string) (*models.BookingGroup, error) {
	args := m.Called(reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingGroup), args.Error(1)
}

func (m *MockDBLayer) GetPendingGroupForUser(ctx context.Context, idb bun.IDB, userID string) (*models.BookingGroup, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingGroup), args.Error(1)
}

func (m *MockDBLayer) InsertGroup(ctx context.Context, idb bun.IDB, group *models.BookingGroup) error {
	args := m.Called(group)
	return args.Error(0)
}

func (m *MockDBLayer) GroupBookings(ctx context.Context, idb bun.IDB, groupID string) ([]models.Booking, error) {
	args := m.Called(groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockDBLayer) RecomputeGroupTotal(ctx context.Context, idb bun.IDB, groupID string) (float64, error) {
	args := m.Called(groupID)
	return args.Get(0).(float64), args.Error(1)
}

type MockSectionLock struct {
	mock.Mock
}

func (m *MockSectionLock) Lock(ctx context.Context, sectionID, ownerID string) (bool, error) {
	args := m.Called(sectionID, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSectionLock) Unlock(ctx context.Context, sectionID, ownerID string) error {
	args := m.Called(sectionID, ownerID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBookingConfirmed(booking models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockPublisher) PublishBookingCanceled(booking models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

type MockQRGenerator struct {
	mock.Mock
}

func (m *MockQRGenerator) ConfirmationQR(booking models.Booking) (string, error) {
	args := m.Called(booking)
	return args.String(0), args.Error(1)
}

// inventoryDB builds a sqlite-backed transaction target with one seeded
// section for tests that exercise the ledger.
func inventoryDB(t *testing.T, capacity, available int, price float64) bun.IDB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx,
		(*models.VenueSection)(nil),
		(*models.EventSection)(nil),
	))

	_, err = bunDB.NewInsert().Model(&models.VenueSection{
		ID: "vs-1", VenueID: "venue-1", Name: "Floor", Capacity: capacity,
	}).Exec(ctx)
	require.NoError(t, err)

	_, err = bunDB.NewInsert().Model(&models.EventSection{
		ID: "es-1", EventID: "event-1", VenueSectionID: "vs-1",
		TicketsAvailable: available, TicketPrice: price,
	}).Exec(ctx)
	require.NoError(t, err)

	return bunDB
}

func TestCreateBookingOpensGroup(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSectionLock)
	mockKafka := new(MockPublisher)
	mockQR := new(MockQRGenerator)

	svc := booking.NewService(mockDB, mockLock, mockKafka, mockQR, logger.NewLogger())

	section := &models.EventSection{
		ID: "es-1", EventID: "event-1", VenueSectionID: "vs-1",
		TicketsAvailable: 100, TicketPrice: 15.00,
	}
	mockDB.On("GetEventSection", "es-1").Return(section, nil)
	mockDB.On("BookingReferenceExists", mock.AnythingOfType("string")).Return(false, nil)
	mockDB.On("GetPendingGroupForUser", "user-1").Return(nil, nil)
	mockDB.On("InsertGroup", mock.AnythingOfType("*models.BookingGroup")).Return(nil)
	mockDB.On("InsertBooking", mock.MatchedBy(func(b *models.Booking) bool {
		return b.NumberOfTickets == 2 && b.TotalPrice == 30.00 && b.Status == models.BookingPending
	})).Return(nil)
	mockDB.On("RecomputeGroupTotal", mock.AnythingOfType("string")).Return(30.00, nil)

	resp, err := svc.CreateBooking(context.Background(), "user-1", "es-1", 2)

	assert.NoError(t, err)
	assert.Equal(t, models.BookingPending, resp.Booking.Status)
	assert.Equal(t, 30.00, resp.Booking.TotalPrice)
	assert.NotEmpty(t, resp.Booking.Reference)
	assert.NotEmpty(t, resp.GroupReference)
	mockDB.AssertExpectations(t)
}

func TestCreateBookingJoinsOpenGroup(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := booking.NewService(mockDB, new(MockSectionLock), new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	section := &models.EventSection{
		ID: "es-1", EventID: "event-1", VenueSectionID: "vs-1",
		TicketsAvailable: 100, TicketPrice: 10.00,
	}
	openGroup := &models.BookingGroup{
		ID: "grp-1", Reference: "GRP-20260831-AB12CD", UserID: "user-1",
		Status: models.GroupPending, CreatedAt: time.Now(),
	}
	mockDB.On("GetEventSection", "es-1").Return(section, nil)
	mockDB.On("BookingReferenceExists", mock.AnythingOfType("string")).Return(false, nil)
	mockDB.On("GetPendingGroupForUser", "user-1").Return(openGroup, nil)
	mockDB.On("InsertBooking", mock.MatchedBy(func(b *models.Booking) bool {
		return b.BookingGroupID == "grp-1"
	})).Return(nil)
	mockDB.On("RecomputeGroupTotal", "grp-1").Return(40.00, nil)

	resp, err := svc.CreateBooking(context.Background(), "user-1", "es-1", 4)

	assert.NoError(t, err)
	assert.Equal(t, "GRP-20260831-AB12CD", resp.GroupReference)
	mockDB.AssertNotCalled(t, "InsertGroup", mock.Anything)
	mockDB.AssertExpectations(t)
}

func TestCreateBookingRejectsNonPositiveQuantity(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := booking.NewService(mockDB, new(MockSectionLock), new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	_, err := svc.CreateBooking(context.Background(), "user-1", "es-1", 0)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = svc.CreateBooking(context.Background(), "user-1", "es-1", -2)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	mockDB.AssertNotCalled(t, "InsertBooking", mock.Anything)
}

func TestConfirmBookingReservesInventory(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockDB.tx = inventoryDB(t, 100, 100, 15.00)
	mockLock := new(MockSectionLock)
	mockKafka := new(MockPublisher)
	mockQR := new(MockQRGenerator)

	svc := booking.NewService(mockDB, mockLock, mockKafka, mockQR, logger.NewLogger())

	pending := &models.Booking{
		ID: "bkg-1", Reference: "BKG-20260831-000001", UserID: "user-1",
		EventSectionID: "es-1", BookingGroupID: "grp-1",
		NumberOfTickets: 4, TotalPrice: 60.00,
		Status: models.BookingPending, BookingDate: time.Now(), CreatedAt: time.Now(),
	}
	section := &models.EventSection{
		ID: "es-1", EventID: "event-1", VenueSectionID: "vs-1",
		TicketsAvailable: 96, TicketPrice: 15.00,
	}
	group := &models.BookingGroup{
		ID: "grp-1", Reference: "GRP-20260831-AB12CD", UserID: "user-1",
		Status: models.GroupPending,
	}

	mockLock.On("Lock", "es-1", "bkg-1").Return(true, nil)
	mockLock.On("Unlock", "es-1", "bkg-1").Return(nil)
	mockDB.On("GetBooking", "bkg-1").Return(pending, nil)
	mockDB.On("GetEventSection", "es-1").Return(section, nil)
	mockDB.On("UpdateBooking", mock.MatchedBy(func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed && b.TotalPrice == 60.00
	})).Return(nil)
	mockDB.On("RecomputeGroupTotal", "grp-1").Return(60.00, nil)
	mockDB.On("GetGroup", "grp-1").Return(group, nil)
	mockKafka.On("PublishBookingConfirmed", mock.AnythingOfType("models.Booking")).Return(nil)
	mockQR.On("ConfirmationQR", mock.AnythingOfType("models.Booking")).Return("qr-data", nil)

	resp, err := svc.SetBookingStatus(context.Background(), "bkg-1", models.BookingConfirmed)

	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, resp.Booking.Status)
	assert.Equal(t, "qr-data", resp.QRCode)
	assert.Equal(t, "GRP-20260831-AB12CD", resp.GroupReference)

	// The ledger decremented availability inside the transaction target.
	var got models.EventSection
	require.NoError(t, mockDB.tx.NewSelect().Model(&got).Where("id = ?", "es-1").Scan(context.Background()))
	assert.Equal(t, 96, got.TicketsAvailable)

	mockDB.AssertExpectations(t)
	mockLock.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
}

func TestConfirmBookingInsufficientInventory(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockDB.tx = inventoryDB(t, 100, 3, 15.00)
	mockLock := new(MockSectionLock)
	mockKafka := new(MockPublisher)

	svc := booking.NewService(mockDB, mockLock, mockKafka, new(MockQRGenerator), logger.NewLogger())

	pending := &models.Booking{
		ID: "bkg-1", Reference: "BKG-20260831-000001", UserID: "user-1",
		EventSectionID: "es-1", NumberOfTickets: 4,
		Status: models.BookingPending, BookingDate: time.Now(),
	}
	mockLock.On("Lock", "es-1", "bkg-1").Return(true, nil)
	mockLock.On("Unlock", "es-1", "bkg-1").Return(nil)
	mockDB.On("GetBooking", "bkg-1").Return(pending, nil)

	_, err := svc.SetBookingStatus(context.Background(), "bkg-1", models.BookingConfirmed)

	assert.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	mockDB.AssertNotCalled(t, "UpdateBooking", mock.Anything)
	mockKafka.AssertNotCalled(t, "PublishBookingConfirmed", mock.Anything)
}

func TestCancelPendingBookingLeavesInventory(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSectionLock)
	mockKafka := new(MockPublisher)

	svc := booking.NewService(mockDB, mockLock, mockKafka, new(MockQRGenerator), logger.NewLogger())

	pending := &models.Booking{
		ID: "bkg-1", Reference: "BKG-20260831-000001", UserID: "user-1",
		EventSectionID: "es-1", NumberOfTickets: 2, TotalPrice: 30.00,
		Status: models.BookingPending, BookingDate: time.Now(),
	}
	section := &models.EventSection{
		ID: "es-1", VenueSectionID: "vs-1", TicketsAvailable: 100, TicketPrice: 15.00,
	}

	mockLock.On("Lock", "es-1", "bkg-1").Return(true, nil)
	mockLock.On("Unlock", "es-1", "bkg-1").Return(nil)
	mockDB.On("GetBooking", "bkg-1").Return(pending, nil)
	mockDB.On("GetEventSection", "es-1").Return(section, nil)
	mockDB.On("UpdateBooking", mock.MatchedBy(func(b *models.Booking) bool {
		return b.Status == models.BookingCanceled
	})).Return(nil)
	mockKafka.On("PublishBookingCanceled", mock.AnythingOfType("models.Booking")).Return(nil)

	resp, err := svc.SetBookingStatus(context.Background(), "bkg-1", models.BookingCanceled)

	require.NoError(t, err)
	assert.Equal(t, models.BookingCanceled, resp.Booking.Status)
	assert.Empty(t, resp.QRCode)
	mockDB.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
}

func TestSetBookingStatusInvalidTransition(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSectionLock)

	svc := booking.NewService(mockDB, mockLock, new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	done := &models.Booking{
		ID: "bkg-1", Reference: "BKG-20260831-000001", UserID: "user-1",
		EventSectionID: "es-1", NumberOfTickets: 2,
		Status: models.BookingCompleted, BookingDate: time.Now(),
	}
	mockLock.On("Lock", "es-1", "bkg-1").Return(true, nil)
	mockLock.On("Unlock", "es-1", "bkg-1").Return(nil)
	mockDB.On("GetBooking", "bkg-1").Return(done, nil)

	_, err := svc.SetBookingStatus(context.Background(), "bkg-1", models.BookingCanceled)

	assert.ErrorIs(t, err, inventory.ErrInvalidTransition)
	mockDB.AssertNotCalled(t, "UpdateBooking", mock.Anything)
}

func TestSetBookingStatusLockUnavailable(t *testing.T) {
	// A down Redis only loses the advisory lock; the transition still runs.
	mockDB := new(MockDBLayer)
	mockLock := new(MockSectionLock)
	mockKafka := new(MockPublisher)

	svc := booking.NewService(mockDB, mockLock, mockKafka, new(MockQRGenerator), logger.NewLogger())

	pending := &models.Booking{
		ID: "bkg-1", Reference: "BKG-20260831-000001", UserID: "user-1",
		EventSectionID: "es-1", NumberOfTickets: 1, TotalPrice: 15.00,
		Status: models.BookingPending, BookingDate: time.Now(),
	}
	section := &models.EventSection{
		ID: "es-1", VenueSectionID: "vs-1", TicketsAvailable: 100, TicketPrice: 15.00,
	}

	mockLock.On("Lock", "es-1", "bkg-1").Return(false, assert.AnError)
	mockDB.On("GetBooking", "bkg-1").Return(pending, nil)
	mockDB.On("GetEventSection", "es-1").Return(section, nil)
	mockDB.On("UpdateBooking", mock.Anything).Return(nil)
	mockKafka.On("PublishBookingCanceled", mock.AnythingOfType("models.Booking")).Return(nil)

	_, err := svc.SetBookingStatus(context.Background(), "bkg-1", models.BookingCanceled)

	assert.NoError(t, err)
	mockLock.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything)
}

func TestGetBookingNotFound(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := booking.NewService(mockDB, new(MockSectionLock), new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	mockDB.On("GetBooking", "missing").Return(nil, sql.ErrNoRows)

	_, err := svc.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestGetBookingGroupNotFound(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := booking.NewService(mockDB, new(MockSectionLock), new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	mockDB.On("GetGroupByReference", "GRP-20260831-ZZZZZZ").Return(nil, sql.ErrNoRows)

	_, err := svc.GetBookingGroup(context.Background(), "GRP-20260831-ZZZZZZ")
	assert.ErrorIs(t, err, booking.ErrGroupNotFound)
}

func TestCreateEventSectionValidatesCapacity(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := booking.NewService(mockDB, new(MockSectionLock), new(MockPublisher), new(MockQRGenerator), logger.NewLogger())

	mockDB.On("GetVenueSection", "vs-1").Return(&models.VenueSection{
		ID: "vs-1", VenueID: "venue-1", Name: "Pit", Capacity: 50,
	}, nil)

	_, err := svc.CreateEventSection(context.Background(), "event-1", "vs-1", 60, 25.00)
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
	mockDB.AssertNotCalled(t, "InsertEventSection", mock.Anything)

	mockDB.On("InsertEventSection", mock.MatchedBy(func(s *models.EventSection) bool {
		return s.TicketsAvailable == 50 && s.TicketPrice == 25.00
	})).Return(nil)

	section, err := svc.CreateEventSection(context.Background(), "event-1", "vs-1", 50, 25.00)
	require.NoError(t, err)
	assert.Equal(t, "event-1", section.EventID)
	mockDB.AssertExpectations(t)
}
