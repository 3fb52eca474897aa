// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import "testing"

// TestMediaDescriptor_Extract verifies present fields are extracted and
// absent ones skipped.
func TestMediaDescriptor_Extract(t *testing.T) {
	d := MediaDescriptor()
	obj := &Object{
		ID:       "http://data.media.theplatform.com/media/data/Media/1",
		GUID:     "g-1",
		Title:    "A Title",
		Duration: 90,
	}

	got := d.Extract(obj)

	if got["guid"] != "g-1" {
		t.Errorf("expected guid g-1, got %q", got["guid"])
	}
	if got["title"] != "A Title" {
		t.Errorf("expected title, got %q", got["title"])
	}
	if got["duration"] != "90" {
		t.Errorf("expected duration 90, got %q", got["duration"])
	}
	if _, present := got["description"]; present {
		t.Error("expected absent description to be skipped")
	}
	if _, present := got["thumbnail"]; present {
		t.Error("expected absent thumbnail to be skipped")
	}
}

// TestDescriptor_FieldReplacement verifies re-registering a name replaces
// the accessor without duplicating it in extraction order.
func TestDescriptor_FieldReplacement(t *testing.T) {
	d := NewDescriptor("Media").
		Field("title", func(o *Object) (string, bool) { return "first", true }).
		Field("title", func(o *Object) (string, bool) { return "second", true })

	if got := len(d.Names()); got != 1 {
		t.Fatalf("expected 1 registered name, got %d", got)
	}
	if v, _ := d.Get("title", &Object{}); v != "second" {
		t.Errorf("expected replaced accessor, got %q", v)
	}
}

// TestDescriptorFor_UnknownType verifies unregistered types error.
func TestDescriptorFor_UnknownType(t *testing.T) {
	if _, err := DescriptorFor("Category"); err == nil {
		t.Fatal("expected error for unregistered object type, got nil")
	}
}

// TestDescriptorFor_RegisteredTypes verifies every built-in object type
// resolves to a descriptor of the right type.
func TestDescriptorFor_RegisteredTypes(t *testing.T) {
	for _, objectType := range []string{"Media", "Player", "Feed"} {
		d, err := DescriptorFor(objectType)
		if err != nil {
			t.Fatalf("expected %s descriptor, got error %v", objectType, err)
		}
		if d.Type != objectType {
			t.Errorf("expected descriptor type %s, got %s", objectType, d.Type)
		}
	}
}

// TestPlayerDescriptor_Extract verifies players extract title metadata
// but no media-only attributes.
func TestPlayerDescriptor_Extract(t *testing.T) {
	d := PlayerDescriptor()
	obj := &Object{
		ID:      "http://data.player.theplatform.com/player/data/Player/1",
		GUID:    "p-1",
		Title:   "Site Player",
		Updated: 1756600000000,
	}

	got := d.Extract(obj)
	if got["guid"] != "p-1" || got["title"] != "Site Player" {
		t.Errorf("unexpected extraction: %v", got)
	}
	if _, present := got["duration"]; present {
		t.Error("players must not extract a duration")
	}
	if _, present := got["thumbnail"]; present {
		t.Error("players must not extract a thumbnail")
	}
}
