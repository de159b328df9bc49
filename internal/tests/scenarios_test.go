package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAuthFlow covers send-otp, verify-otp, register and the session endpoints
func runAuthFlow(t *testing.T, ts *testServer) {
	const phone = "9876500001"

	verify := ts.login(t, phone)
	assert.Equal(t, true, verify.Body["requiresRegistration"])
	assert.Nil(t, verify.Body["user"])
	bridge := verify.str("token")

	res := ts.get(t, "/auth/me", bridge)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.Equal(t, "otp_verified", res.str("sessionKind"))
	assert.Equal(t, phone, res.str("phoneNumber"))

	res = ts.get(t, "/users/profile", bridge)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, true, res.Body["requiresRegistration"])

	body := registration("nisha", "Pune")
	body["phoneNumber"] = "9876500099"
	res = ts.post(t, "/users/register", body, bridge)
	assert.Equal(t, http.StatusBadRequest, res.Status, "phone must match the verified session")

	res = ts.post(t, "/users/register", registration("nisha", "Pune"), bridge)
	require.Equal(t, http.StatusCreated, res.Status, res.Raw)
	assert.Equal(t, false, res.Body["requiresRegistration"])
	full := res.str("token")
	user := res.object("user")
	assert.Equal(t, "nisha", user["name"])
	assert.Equal(t, phone, user["phoneNumber"])

	res = ts.get(t, "/auth/me", bridge)
	assert.Equal(t, http.StatusUnauthorized, res.Status, "the bridge session is consumed by registration")

	res = ts.get(t, "/users/profile", full)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.Equal(t, user["id"], res.str("id"))

	again := ts.login(t, phone)
	assert.Equal(t, false, again.Body["requiresRegistration"], "a registered phone gets a full session directly")
	assert.Equal(t, user["id"], again.object("user")["id"])

	res = ts.post(t, "/users/register", registration("nisha", "Pune"), again.str("token"))
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "phone number already registered", res.str("error"))

	res = ts.post(t, "/auth/logout", nil, full)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, http.StatusUnauthorized, ts.get(t, "/users/profile", full).Status)
	assert.Equal(t, http.StatusOK, ts.get(t, "/users/profile", again.str("token")).Status, "other sessions survive logout")
}

// runOTPProperties covers the two-rows and latest-code rules
func runOTPProperties(t *testing.T, ts *testServer) {
	const phone = "9876500002"

	first := ts.sendOTP(t, phone)
	second := ts.sendOTP(t, phone)
	assert.Equal(t, 2, ts.otpCount(t, phone), "each send stores its own row")

	if first != second {
		res := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": phone, "otp": first}, "")
		assert.Equal(t, http.StatusBadRequest, res.Status, "an older code no longer verifies")
	}
	res := ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": phone, "otp": second}, "")
	assert.Equal(t, http.StatusOK, res.Status, "verify with the latest code must succeed; body: %s", res.Raw)

	res = ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": phone, "otp": second}, "")
	assert.Equal(t, http.StatusBadRequest, res.Status, "a code verifies once")

	other := ts.sendOTP(t, "9876500003")
	res = ts.post(t, "/auth/verify-otp", map[string]string{"phoneNumber": phone, "otp": other}, "")
	assert.Equal(t, http.StatusBadRequest, res.Status, "a code for another phone must fail")
	assert.Equal(t, "invalid or expired code", res.str("error"))
}

// runInterestScenario walks send, decline, re-send, accept and checks contact visibility
func runInterestScenario(t *testing.T, ts *testServer) {
	token1, id1 := ts.register(t, "9876500011", "user1", "Pune")
	token2, id2 := ts.register(t, "9876500012", "user2", "Pune")

	res := ts.get(t, "/users/"+id2, token1)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.NotContains(t, res.Body, "phoneNumber", "contact hidden before accept")
	assert.NotContains(t, res.Body, "email")

	res = ts.post(t, "/interests/send", map[string]string{"receiverId": id2}, token1)
	require.Equal(t, http.StatusCreated, res.Status, res.Raw)
	interestID := res.str("id")
	assert.Equal(t, "pending", res.str("status"))
	firstSentAt := res.str("sentAt")

	res = ts.post(t, "/interests/send", map[string]string{"receiverId": id2}, token1)
	assert.Equal(t, http.StatusBadRequest, res.Status, "second send while pending is a conflict")
	assert.Equal(t, 1, ts.interestRows(t))

	res = ts.get(t, "/interests/pending-count", token2)
	require.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 1, res.Body["count"])

	res = ts.put(t, "/interests/"+interestID+"/accept", token1)
	assert.Equal(t, http.StatusNotFound, res.Status, "the sender cannot accept")
	res = ts.put(t, "/interests/"+interestID+"/decline", token1)
	assert.Equal(t, http.StatusNotFound, res.Status, "the sender cannot decline")

	res = ts.put(t, "/interests/"+interestID+"/decline", token2)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.Equal(t, "declined", res.str("status"))
	assert.NotEmpty(t, res.Body["respondedAt"])

	res = ts.put(t, "/interests/"+interestID+"/accept", token2)
	assert.Equal(t, http.StatusBadRequest, res.Status, "responding twice is a conflict")

	ts.Clock.Advance(time.Minute)
	res = ts.post(t, "/interests/send", map[string]string{"receiverId": id2}, token1)
	require.Equal(t, http.StatusCreated, res.Status, res.Raw)
	assert.Equal(t, interestID, res.str("id"), "re-send reuses the declined row")
	assert.Equal(t, "pending", res.str("status"))
	assert.Nil(t, res.Body["respondedAt"])
	assert.NotEqual(t, firstSentAt, res.str("sentAt"))
	assert.Equal(t, 1, ts.interestRows(t))

	res = ts.put(t, "/interests/"+interestID+"/accept", token2)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.Equal(t, "accepted", res.str("status"))

	res = ts.get(t, "/users/"+id2, token1)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "9876500012", res.str("phoneNumber"), "contact visible after accept")
	assert.Equal(t, "user2@example.com", res.str("email"))

	res = ts.get(t, "/users/"+id1, token2)
	assert.Equal(t, "9876500011", res.str("phoneNumber"), "visibility is symmetric")

	res = ts.get(t, "/users/"+id2, "")
	assert.NotContains(t, res.Body, "phoneNumber", "anonymous viewers never see contact")

	res = ts.get(t, "/interests/sent", token1)
	require.Equal(t, http.StatusOK, res.Status)
	require.Len(t, res.List, 1)
	sent := res.List[0].(map[string]any)
	assert.Equal(t, "accepted", sent["status"])
	assert.Equal(t, id2, sent["user"].(map[string]any)["id"])

	res = ts.get(t, "/interests/received", token2)
	require.Len(t, res.List, 1)
	assert.Equal(t, id1, res.List[0].(map[string]any)["user"].(map[string]any)["id"])

	res = ts.put(t, "/interests/"+interestID+"/withdraw", token2)
	require.Equal(t, http.StatusOK, res.Status, "either party may withdraw from any status")
	assert.Equal(t, "withdrawn", res.str("status"))
}

// runSearchExclusion checks that linked users disappear from each other's results until withdrawn
func runSearchExclusion(t *testing.T, ts *testServer) {
	tokenA, idA := ts.register(t, "9876500021", "alpha", "Nagpur")
	tokenB, idB := ts.register(t, "9876500022", "bravo", "Nagpur")
	_, idC := ts.register(t, "9876500023", "charlie", "Nagpur")

	res := ts.get(t, "/users/search?city=Nagpur", "")
	require.Equal(t, http.StatusOK, res.Status, res.Raw)
	assert.ElementsMatch(t, []string{idA, idB, idC}, userIDs(res))
	assert.EqualValues(t, 3, res.Body["total"])

	res = ts.get(t, "/users/search?cities=Nagpur&cities=Indore", tokenA)
	assert.ElementsMatch(t, []string{idB, idC}, userIDs(res), "the viewer never sees themself")

	res = ts.post(t, "/interests/send", map[string]string{"receiverId": idB}, tokenA)
	require.Equal(t, http.StatusCreated, res.Status, res.Raw)
	interestID := res.str("id")

	assert.ElementsMatch(t, []string{idC}, userIDs(ts.get(t, "/users/search?city=Nagpur", tokenA)))
	assert.ElementsMatch(t, []string{idC}, userIDs(ts.get(t, "/users/search?city=Nagpur", tokenB)), "exclusion applies both ways")
	assert.ElementsMatch(t, []string{idA, idB, idC}, userIDs(ts.get(t, "/users/search?city=Nagpur&forceAnonymous=true", tokenA)))

	res = ts.get(t, "/users/search?city=Nagpur&limit=1", tokenA)
	assert.EqualValues(t, 1, res.Body["total"], "total counts the post-exclusion set")
	assert.Equal(t, false, res.Body["hasMore"])

	res = ts.put(t, "/interests/"+interestID+"/withdraw", tokenA)
	require.Equal(t, http.StatusOK, res.Status, res.Raw)

	assert.ElementsMatch(t, []string{idB, idC}, userIDs(ts.get(t, "/users/search?city=Nagpur", tokenA)))
	assert.ElementsMatch(t, []string{idA, idC}, userIDs(ts.get(t, "/users/search?city=Nagpur", tokenB)))

	res = ts.get(t, "/users/filter-options", "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Body["cities"], "Nagpur")
	assert.Contains(t, res.Body["activities"], "Badminton")
}

// runDailyLimit sends ten interests late on one day, is refused the eleventh, and succeeds after midnight
func runDailyLimit(t *testing.T, ts *testServer) {
	now := ts.Clock.Now()
	ts.Clock.Set(time.Date(now.Year(), now.Month(), now.Day(), 23, 0, 0, 0, time.UTC))

	sender, _ := ts.register(t, "9876500030", "sender", "Surat")
	receivers := make([]string, 11)
	for i := range receivers {
		_, receivers[i] = ts.register(t, fmt.Sprintf("98765001%02d", i), fmt.Sprintf("recv%d", i), "Surat")
	}

	for i := 0; i < 10; i++ {
		res := ts.post(t, "/interests/send", map[string]string{"receiverId": receivers[i]}, sender)
		require.Equal(t, http.StatusCreated, res.Status, "send %d: %s", i, res.Raw)
		ts.Clock.Advance(time.Minute)
	}
	res := ts.get(t, "/interests/today-count", sender)
	assert.EqualValues(t, 10, res.Body["count"])
	assert.EqualValues(t, 0, res.Body["remaining"])

	res = ts.post(t, "/interests/send", map[string]string{"receiverId": receivers[10]}, sender)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "daily interest limit reached", res.str("error"))

	ts.Clock.Advance(90 * time.Minute)
	res = ts.post(t, "/interests/send", map[string]string{"receiverId": receivers[10]}, sender)
	assert.Equal(t, http.StatusCreated, res.Status, "the quota resets at local midnight; body: %s", res.Raw)

	res = ts.get(t, "/interests/today-count", sender)
	assert.EqualValues(t, 1, res.Body["count"])
}
