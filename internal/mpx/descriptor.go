// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

package mpx

import (
	"fmt"
	"strconv"
	"time"
)

// FieldAccessor extracts one metadata attribute from an object. The bool
// result is false when the attribute is absent for this object.
type FieldAccessor func(o *Object) (string, bool)

// Descriptor maps attribute names to accessors for one mpx object type.
// Descriptors are built once at startup; the importer walks the table to
// extract metadata, so no runtime reflection is involved.
type Descriptor struct {
	Type   string
	fields map[string]FieldAccessor
	order  []string
}

// NewDescriptor creates an empty descriptor for the given object type.
func NewDescriptor(objectType string) *Descriptor {
	return &Descriptor{
		Type:   objectType,
		fields: make(map[string]FieldAccessor),
	}
}

// Field registers an accessor under name. Registering a name twice
// replaces the earlier accessor.
func (d *Descriptor) Field(name string, fn FieldAccessor) *Descriptor {
	if _, exists := d.fields[name]; !exists {
		d.order = append(d.order, name)
	}
	d.fields[name] = fn
	return d
}

// Get extracts a single attribute by name.
func (d *Descriptor) Get(name string, o *Object) (string, bool) {
	fn, ok := d.fields[name]
	if !ok {
		return "", false
	}
	return fn(o)
}

// Extract returns all present attributes in registration order.
func (d *Descriptor) Extract(o *Object) map[string]string {
	out := make(map[string]string, len(d.order))
	for _, name := range d.order {
		if v, ok := d.fields[name](o); ok {
			out[name] = v
		}
	}
	return out
}

// Names returns the registered attribute names in registration order.
func (d *Descriptor) Names() []string {
	return append([]string(nil), d.order...)
}

// MediaDescriptor describes the Media object type.
func MediaDescriptor() *Descriptor {
	return NewDescriptor("Media").
		Field("guid", func(o *Object) (string, bool) {
			return o.GUID, o.GUID != ""
		}).
		Field("title", func(o *Object) (string, bool) {
			return o.Title, o.Title != ""
		}).
		Field("description", func(o *Object) (string, bool) {
			return o.Description, o.Description != ""
		}).
		Field("duration", func(o *Object) (string, bool) {
			if o.Duration <= 0 {
				return "", false
			}
			return strconv.FormatFloat(o.Duration, 'f', -1, 64), true
		}).
		Field("thumbnail", func(o *Object) (string, bool) {
			return o.DefaultThumb, o.DefaultThumb != ""
		}).
		Field("updated", func(o *Object) (string, bool) {
			if o.Updated <= 0 {
				return "", false
			}
			return time.UnixMilli(o.Updated).UTC().Format(time.RFC3339), true
		})
}

// PlayerDescriptor describes the Player object type. Players carry no
// duration or thumbnail.
func PlayerDescriptor() *Descriptor {
	return NewDescriptor("Player").
		Field("guid", func(o *Object) (string, bool) {
			return o.GUID, o.GUID != ""
		}).
		Field("title", func(o *Object) (string, bool) {
			return o.Title, o.Title != ""
		}).
		Field("description", func(o *Object) (string, bool) {
			return o.Description, o.Description != ""
		}).
		Field("updated", func(o *Object) (string, bool) {
			if o.Updated <= 0 {
				return "", false
			}
			return time.UnixMilli(o.Updated).UTC().Format(time.RFC3339), true
		})
}

// FeedDescriptor describes the FeedConfig object type.
func FeedDescriptor() *Descriptor {
	return NewDescriptor("Feed").
		Field("guid", func(o *Object) (string, bool) {
			return o.GUID, o.GUID != ""
		}).
		Field("title", func(o *Object) (string, bool) {
			return o.Title, o.Title != ""
		}).
		Field("description", func(o *Object) (string, bool) {
			return o.Description, o.Description != ""
		}).
		Field("updated", func(o *Object) (string, bool) {
			if o.Updated <= 0 {
				return "", false
			}
			return time.UnixMilli(o.Updated).UTC().Format(time.RFC3339), true
		})
}

// descriptorRegistry holds the built-in descriptors by object type.
var descriptorRegistry = map[string]*Descriptor{
	"Media":  MediaDescriptor(),
	"Player": PlayerDescriptor(),
	"Feed":   FeedDescriptor(),
}

// DescriptorFor returns the descriptor for an object type.
func DescriptorFor(objectType string) (*Descriptor, error) {
	d, ok := descriptorRegistry[objectType]
	if !ok {
		return nil, fmt.Errorf("no descriptor registered for object type %q", objectType)
	}
	return d, nil
}
