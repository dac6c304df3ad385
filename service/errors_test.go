package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"google.golang.org/api/googleapi"
)

func TestRetriable(t *testing.T) {
	i := 0
	ctx := context.Background()
	tim := time.Now()
	err := Retriable(ctx, func() error {
		i++
		return MakeTemporary(fmt.Errorf("%d", i))
	}, time.Microsecond, 3)

	if time.Since(tim) < 3*time.Microsecond {
		t.Errorf("err: excepted at least 3µs got %v", time.Since(tim))
	}

	if err == nil {
		t.Fatal("err: excepted 3 got nil")
	}
	if err.Error() != "3" {
		t.Error("err: excepted 3 got " + err.Error())
	}
}

func TestRetriablePermanent(t *testing.T) {
	i := 0
	err := Retriable(context.Background(), func() error {
		i++
		return fmt.Errorf("permanent")
	}, time.Microsecond, 5)
	if err == nil || i != 1 {
		t.Errorf("permanent error must not be retried: %d tries (%v)", i, err)
	}

	i = 0
	err = Retriable(context.Background(), func() error {
		i++
		if i < 3 {
			return MakeTemporary(fmt.Errorf("temporary"))
		}
		return nil
	}, time.Microsecond, 5)
	if err != nil || i != 3 {
		t.Errorf("expected success after 3 tries: %d tries (%v)", i, err)
	}
}

func TestRetriableCanceled(t *testing.T) {
	ctx, cncl := context.WithCancel(context.Background())
	i := 0
	err := Retriable(ctx, func() error {
		i++
		cncl()
		return MakeTemporary(fmt.Errorf("temporary"))
	}, time.Hour, 5)
	if err == nil || i != 1 {
		t.Errorf("canceled context must stop retries: %d tries (%v)", i, err)
	}
}

func TestPermanent(t *testing.T) {
	err := fmt.Errorf("Permanent error")
	if Temporary(err) {
		t.Fail()
	}
	err = &url.Error{Err: err}
	if Temporary(err) {
		t.Fail()
	}
	if Temporary(&googleapi.Error{Code: 400}) {
		t.Fail()
	}
	if Temporary(MakeFatal(MakeTemporary(fmt.Errorf("fatal")))) {
		t.Fail()
	}
}

func TestTemporary(t *testing.T) {
	err := MakeTemporary(fmt.Errorf("Temporary error"))
	if !Temporary(err) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", err)
	if !Temporary(err) {
		t.Fail()
	}
	if !Temporary(context.Canceled) {
		t.Fail()
	}
	if !Temporary(context.DeadlineExceeded) {
		t.Fail()
	}
	err = fmt.Errorf("Warp: %w", &url.Error{Err: err})
	if !Temporary(err) {
		t.Fail()
	}
	for _, code := range []int{429, 500, 503} {
		if !Temporary(fmt.Errorf("Warp: %w", &googleapi.Error{Code: code})) {
			t.Errorf("googleapi %d must be temporary", code)
		}
	}
}

func TestFatal(t *testing.T) {
	err := fmt.Errorf("Warp: %w", MakeFatal(common.ErrAuthentication))
	if !Fatal(err) {
		t.Fail()
	}
	if !errors.Is(err, common.ErrAuthentication) {
		t.Fail()
	}
	if Fatal(fmt.Errorf("not fatal")) {
		t.Fail()
	}
}

func TestMergeErrors(t *testing.T) {
	tmp := MakeTemporary(fmt.Errorf("tmp"))
	perm := fmt.Errorf("perm")
	if err := MergeErrors(false, perm, nil); err != nil {
		t.Errorf("priority to no error: %v", err)
	}
	if err := MergeErrors(false, perm, tmp); !Temporary(err) {
		t.Errorf("priority to temporary: %v", err)
	}
	if err := MergeErrors(true, tmp, perm); Temporary(err) {
		t.Errorf("priority to permanent: %v", err)
	}
}

func TestStageError(t *testing.T) {
	dr, _ := common.NewDateRange("2023-08-01", "2023-08-31")
	req := common.Request{Coordinate: common.Coordinate{Latitude: 35.681236, Longitude: 139.767125}, Dates: dr}
	err := fmt.Errorf("GetNDVIImage.%w", NewStageError(common.StageSearch, req, common.ErrNoImageFound))

	if !errors.Is(err, common.ErrNoImageFound) {
		t.Errorf("StageError must unwrap: %v", err)
	}
	stage, ok := StageOf(err)
	if !ok || stage != common.StageSearch {
		t.Errorf("expected stage Search got %v", stage)
	}
	for _, s := range []string{"Search", "lat=35.681236", "lon=139.767125", "2023-08-01/2023-08-31", "no image found"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("%q not found in %q", s, err.Error())
		}
	}
	if _, ok := StageOf(fmt.Errorf("no stage")); ok {
		t.Errorf("unexpected stage")
	}
}
