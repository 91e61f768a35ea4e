package kittygfx

import (
	"strconv"
	"strings"
)

type field uint32

const (
	fImageID field = 1 << iota
	fImageNumber
	fPlacementID
	fFormat
	fWidth
	fHeight
	fMedium
	fPath
	fDataSize
	fDataOffset
	fCompression
	fQuiet
	fSourceRect
	fCellOffset
	fDisplayArea
	fZIndex
	fCursorPolicy
	fUnicodePlaceholder
	fParent
	fRelativeOffset
	fDeleteTarget
	fAnimation
	fFrame
	fComposition
)

var fieldNames = map[field]string{
	fImageID:            "image id",
	fImageNumber:        "image number",
	fPlacementID:        "placement id",
	fFormat:             "format",
	fWidth:              "width",
	fHeight:             "height",
	fMedium:             "transmission medium",
	fPath:               "path",
	fDataSize:           "data size",
	fDataOffset:         "data offset",
	fCompression:        "compression",
	fQuiet:              "quiet",
	fSourceRect:         "source rectangle",
	fCellOffset:         "cell offset",
	fDisplayArea:        "display area",
	fZIndex:             "z-index",
	fCursorPolicy:       "cursor policy",
	fUnicodePlaceholder: "unicode placeholder",
	fParent:             "parent",
	fRelativeOffset:     "relative offset",
	fDeleteTarget:       "delete target",
	fAnimation:          "animation control",
	fFrame:              "frame parameters",
	fComposition:        "composition",
}

const (
	transmitFields = fFormat | fWidth | fHeight | fMedium | fPath | fDataSize | fDataOffset |
		fCompression | fImageID | fImageNumber
	placementFields = fPlacementID | fSourceRect | fCellOffset | fDisplayArea | fZIndex |
		fCursorPolicy | fUnicodePlaceholder | fParent | fRelativeOffset
)

// allowedFields lists the fields that are meaningful for each action
var allowedFields = map[Action]field{
	TransmitOnly:       transmitFields | fQuiet,
	TransmitAndDisplay: transmitFields | placementFields | fQuiet,
	Query:              transmitFields | fQuiet,
	Display:            fImageID | fImageNumber | placementFields | fQuiet,
	Delete:             fDeleteTarget | fImageID | fImageNumber | fPlacementID | fQuiet,
	AnimationFrame:     transmitFields | fFrame | fQuiet,
	AnimationControl:   fAnimation | fImageID | fImageNumber | fQuiet,
	ComposeFrame:       fComposition | fImageID | fImageNumber | fQuiet,
}

type params struct {
	action Action
	set    field

	imageID     uint32
	imageNumber uint32
	placementID uint32

	format      Format
	width       uint32
	height      uint32
	medium      Medium
	path        string
	dataSize    uint64
	dataOffset  uint64
	compression Compression
	quiet       Quiet

	srcX, srcY, srcW, srcH uint32
	cellX, cellY           uint32
	columns, rows          uint32
	zIndex                 int32
	cursor                 CursorPolicy
	parentImage            uint32
	parentPlacement        uint32
	relH, relV             int32

	deleteTarget DeleteTarget
	animation    Animation
	frame        FrameParams
	composition  Composition
}

func (p *params) has(f field) bool { return p.set&f != 0 }

// Builder stages the fields of a Command. Setters never fail; Build runs a single
// validation pass keyed on the action and freezes the result.
type Builder struct {
	p params
}

// NewBuilder returns a Builder for the protocol default action (TransmitAndDisplay)
func NewBuilder() *Builder {
	return &Builder{p: params{action: TransmitAndDisplay}}
}

// Action sets the operation to perform
func (b *Builder) Action(a Action) *Builder {
	b.p.action = a
	return b
}

// ImageID sets the client-assigned image id (i). Uniqueness is up to the caller.
func (b *Builder) ImageID(id uint32) *Builder {
	b.p.imageID = id
	b.p.set |= fImageID
	return b
}

// ImageNumber sets the image number (I), letting the terminal pick the id
func (b *Builder) ImageNumber(n uint32) *Builder {
	b.p.imageNumber = n
	b.p.set |= fImageNumber
	return b
}

// PlacementID sets the placement id (p)
func (b *Builder) PlacementID(id uint32) *Builder {
	b.p.placementID = id
	b.p.set |= fPlacementID
	return b
}

// Format sets the pixel data format (f)
func (b *Builder) Format(f Format) *Builder {
	b.p.format = f
	b.p.set |= fFormat
	return b
}

// Width sets the image width in pixels (s)
func (b *Builder) Width(w uint32) *Builder {
	b.p.width = w
	b.p.set |= fWidth
	return b
}

// Height sets the image height in pixels (v)
func (b *Builder) Height(h uint32) *Builder {
	b.p.height = h
	b.p.set |= fHeight
	return b
}

// Dimensions sets both pixel dimensions
func (b *Builder) Dimensions(w, h uint32) *Builder {
	return b.Width(w).Height(h)
}

// Medium sets the transmission medium (t)
func (b *Builder) Medium(m Medium) *Builder {
	b.p.medium = m
	b.p.set |= fMedium
	return b
}

// Path sets the file path or shared memory name for non-direct mediums
func (b *Builder) Path(path string) *Builder {
	b.p.path = path
	b.p.set |= fPath
	return b
}

// DataSize sets the number of bytes to read from a file or shared memory (S)
func (b *Builder) DataSize(n uint64) *Builder {
	b.p.dataSize = n
	b.p.set |= fDataSize
	return b
}

// DataOffset sets the offset to start reading a file from (O)
func (b *Builder) DataOffset(n uint64) *Builder {
	b.p.dataOffset = n
	b.p.set |= fDataOffset
	return b
}

// Compression tags the payload as already compressed (o)
func (b *Builder) Compression(c Compression) *Builder {
	b.p.compression = c
	b.p.set |= fCompression
	return b
}

// Quiet sets the response suppression level (q)
func (b *Builder) Quiet(q Quiet) *Builder {
	b.p.quiet = q
	b.p.set |= fQuiet
	return b
}

// SourceRect selects the part of the image to display (x, y, w, h)
func (b *Builder) SourceRect(x, y, w, h uint32) *Builder {
	b.p.srcX, b.p.srcY, b.p.srcW, b.p.srcH = x, y, w, h
	b.p.set |= fSourceRect
	return b
}

// CellOffset sets the pixel offset inside the first cell (X, Y)
func (b *Builder) CellOffset(x, y uint32) *Builder {
	b.p.cellX, b.p.cellY = x, y
	b.p.set |= fCellOffset
	return b
}

// DisplayArea scales the placement to columns x rows cells (c, r)
func (b *Builder) DisplayArea(columns, rows uint32) *Builder {
	b.p.columns, b.p.rows = columns, rows
	b.p.set |= fDisplayArea
	return b
}

// ZIndex sets the stacking order (z); negative values draw below text
func (b *Builder) ZIndex(z int32) *Builder {
	b.p.zIndex = z
	b.p.set |= fZIndex
	return b
}

// CursorPolicy sets whether the cursor moves after placement (C)
func (b *Builder) CursorPolicy(c CursorPolicy) *Builder {
	b.p.cursor = c
	b.p.set |= fCursorPolicy
	return b
}

// UnicodePlaceholder creates a virtual placement for unicode placeholders (U=1)
func (b *Builder) UnicodePlaceholder() *Builder {
	b.p.set |= fUnicodePlaceholder
	return b
}

// Parent places the image relative to another placement (P, Q)
func (b *Builder) Parent(imageID, placementID uint32) *Builder {
	b.p.parentImage, b.p.parentPlacement = imageID, placementID
	b.p.set |= fParent
	return b
}

// RelativeOffset offsets a relative placement in cells (H, V)
func (b *Builder) RelativeOffset(h, v int32) *Builder {
	b.p.relH, b.p.relV = h, v
	b.p.set |= fRelativeOffset
	return b
}

// DeleteTarget selects what a Delete command removes (d)
func (b *Builder) DeleteTarget(t DeleteTarget) *Builder {
	b.p.deleteTarget = t
	b.p.set |= fDeleteTarget
	return b
}

// AnimationControl sets the payload of an AnimationControl command
func (b *Builder) AnimationControl(a Animation) *Builder {
	b.p.animation = a
	b.p.set |= fAnimation
	return b
}

// Frame sets the parameters of an AnimationFrame command
func (b *Builder) Frame(f FrameParams) *Builder {
	b.p.frame = f
	b.p.set |= fFrame
	return b
}

// Composition sets the parameters of a ComposeFrame command
func (b *Builder) Composition(c Composition) *Builder {
	b.p.composition = c
	b.p.set |= fComposition
	return b
}

// Build validates the staged fields against the action and returns an immutable Command
func (b *Builder) Build() (*Command, error) {
	p := b.p
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Command{p: p}, nil
}

func (p *params) invalid(f field, reason string) error {
	return &ValidationError{Action: p.action, Field: fieldNames[f], Reason: reason}
}

func (p *params) validate() error {
	if !p.action.valid() {
		return &ValidationError{Action: p.action, Field: "action", Reason: "is unknown"}
	}

	if extra := p.set &^ allowedFields[p.action]; extra != 0 {
		for f := fImageID; f <= fComposition; f <<= 1 {
			if extra&f != 0 {
				return p.invalid(f, "is not valid for this action")
			}
		}
	}

	if p.has(fQuiet) && p.quiet > QuietAll {
		return p.invalid(fQuiet, "must be 0, 1 or 2")
	}
	if p.has(fImageID) && p.imageID == 0 {
		return p.invalid(fImageID, "must be non-zero")
	}
	if p.has(fImageNumber) && p.imageNumber == 0 {
		return p.invalid(fImageNumber, "must be non-zero")
	}
	if p.has(fImageID) && p.has(fImageNumber) {
		return p.invalid(fImageNumber, "cannot be combined with an image id")
	}
	if p.has(fPlacementID) && p.placementID == 0 {
		return p.invalid(fPlacementID, "must be non-zero")
	}

	if p.action.carriesData() {
		if err := p.validateData(); err != nil {
			return err
		}
	}

	switch p.action {
	case Query:
		if !p.has(fImageID) {
			return p.invalid(fImageID, "is required")
		}
	case Display, AnimationFrame:
		if !p.hasImageRef() {
			return p.invalid(fImageID, "or image number is required")
		}
	case Delete:
		return p.validateDelete()
	case AnimationControl:
		if !p.has(fAnimation) {
			return p.invalid(fAnimation, "is required")
		}
		if p.animation.Gap != 0 && p.animation.Frame == 0 {
			return p.invalid(fAnimation, "gap needs a frame number")
		}
		if !p.hasImageRef() {
			return p.invalid(fImageID, "or image number is required")
		}
	case ComposeFrame:
		if !p.has(fComposition) {
			return p.invalid(fComposition, "is required")
		}
		if p.composition.SourceFrame == 0 || p.composition.DestFrame == 0 {
			return p.invalid(fComposition, "frames are 1-based and must be set")
		}
		if !p.hasImageRef() {
			return p.invalid(fImageID, "or image number is required")
		}
	}
	return nil
}

func (p *params) hasImageRef() bool {
	return p.has(fImageID) || p.has(fImageNumber)
}

func (p *params) effectiveFormat() Format {
	if p.has(fFormat) {
		return p.format
	}
	return RGBA
}

func (p *params) validateData() error {
	switch f := p.effectiveFormat(); f {
	case RGB, RGBA:
		if p.width == 0 {
			return p.invalid(fWidth, "must be positive for "+f.String()+" data")
		}
		if p.height == 0 {
			return p.invalid(fHeight, "must be positive for "+f.String()+" data")
		}
	case PNG:
	default:
		return p.invalid(fFormat, "is unknown")
	}

	if p.has(fMedium) && p.medium.Code() == "" {
		return p.invalid(fMedium, "is unknown")
	}
	if p.has(fCompression) && p.compression != NoCompression && p.compression != Zlib {
		return p.invalid(fCompression, "is unknown")
	}
	direct := p.medium == Direct
	if direct && p.has(fPath) {
		return p.invalid(fPath, "requires a file or shared memory medium")
	}
	if !direct && (!p.has(fPath) || p.path == "") {
		return p.invalid(fPath, "is required for medium "+p.medium.String())
	}
	if direct && (p.has(fDataSize) || p.has(fDataOffset)) {
		return p.invalid(fDataSize, "requires a file or shared memory medium")
	}
	return nil
}

func (p *params) validateDelete() error {
	if !p.has(fDeleteTarget) {
		return p.invalid(fDeleteTarget, "is required")
	}
	t := p.deleteTarget
	if t.Code() == 0 {
		return p.invalid(fDeleteTarget, "is unknown")
	}
	switch t.Kind {
	case DeleteByID, DeleteFrames:
		if !p.has(fImageID) {
			return p.invalid(fImageID, "is required")
		}
	case DeleteByPlacement:
		if !p.has(fImageID) {
			return p.invalid(fImageID, "is required")
		}
		if !p.has(fPlacementID) {
			return p.invalid(fPlacementID, "is required")
		}
	case DeleteByNumber:
		if !p.has(fImageNumber) {
			return p.invalid(fImageNumber, "is required")
		}
	default:
		if p.hasImageRef() {
			return p.invalid(fImageID, "is not used by this delete target")
		}
	}
	if p.has(fPlacementID) && t.Kind != DeleteByID && t.Kind != DeleteByPlacement && t.Kind != DeleteByNumber {
		return p.invalid(fPlacementID, "is not used by this delete target")
	}
	if t.Kind == DeleteByRange && t.X > t.Y {
		return p.invalid(fDeleteTarget, "range start is after its end")
	}
	return nil
}

// Command is one validated graphics protocol operation. It is immutable; Serialize
// reads it without retaining it.
type Command struct {
	p params
}

// Action returns the operation the command performs
func (c *Command) Action() Action { return c.p.action }

// ImageID returns the image id and whether it was set
func (c *Command) ImageID() (uint32, bool) { return c.p.imageID, c.p.has(fImageID) }

// PlacementID returns the placement id and whether it was set
func (c *Command) PlacementID() (uint32, bool) { return c.p.placementID, c.p.has(fPlacementID) }

// Format returns the effective data format
func (c *Command) Format() Format { return c.p.effectiveFormat() }

// Medium returns the transmission medium
func (c *Command) Medium() Medium { return c.p.medium }

// Path returns the file path or shared memory name for non-direct mediums
func (c *Command) Path() string { return c.p.path }

// Quiet returns the quiet level and whether it was set
func (c *Command) Quiet() (Quiet, bool) { return c.p.quiet, c.p.has(fQuiet) }

// DeleteTarget returns the delete target of a Delete command
func (c *Command) DeleteTarget() (DeleteTarget, bool) {
	return c.p.deleteTarget, c.p.has(fDeleteTarget)
}

// Animation returns the payload of an AnimationControl command
func (c *Command) Animation() (Animation, bool) { return c.p.animation, c.p.has(fAnimation) }

func (c *Command) String() string {
	return "Command(" + c.ControlData() + ")"
}

// ControlData returns the comma separated key=value list sent before the payload
func (c *Command) ControlData() string {
	var kv keyValues
	c.p.writeControl(&kv)
	return kv.String()
}

type keyValues struct {
	sb strings.Builder
}

func (kv *keyValues) add(key, value string) {
	if kv.sb.Len() > 0 {
		kv.sb.WriteByte(',')
	}
	kv.sb.WriteString(key)
	kv.sb.WriteByte('=')
	kv.sb.WriteString(value)
}

func (kv *keyValues) uint(key string, v uint64) { kv.add(key, strconv.FormatUint(v, 10)) }
func (kv *keyValues) int(key string, v int64)   { kv.add(key, strconv.FormatInt(v, 10)) }

func (kv *keyValues) String() string { return kv.sb.String() }

func (p *params) writeControl(kv *keyValues) {
	kv.add("a", p.action.Code())

	if p.action == Delete {
		kv.add("d", string(p.deleteTarget.Code()))
	}

	if p.action.carriesData() {
		if p.has(fFormat) {
			kv.int("f", int64(p.format))
		}
		if p.has(fMedium) {
			kv.add("t", p.medium.Code())
		}
		if p.has(fCompression) && p.compression == Zlib {
			kv.add("o", "z")
		}
		if p.effectiveFormat().raw() {
			kv.uint("s", uint64(p.width))
			kv.uint("v", uint64(p.height))
		}
		if p.has(fDataSize) {
			kv.uint("S", p.dataSize)
		}
		if p.has(fDataOffset) {
			kv.uint("O", p.dataOffset)
		}
	}

	if p.has(fImageID) {
		kv.uint("i", uint64(p.imageID))
	} else if p.has(fImageNumber) {
		kv.uint("I", uint64(p.imageNumber))
	}
	if p.has(fPlacementID) {
		kv.uint("p", uint64(p.placementID))
	}

	switch p.action {
	case Delete:
		t := p.deleteTarget
		if t.usesX() {
			kv.int("x", int64(t.X))
		}
		if t.usesY() {
			kv.int("y", int64(t.Y))
		}
		if t.usesZ() {
			kv.int("z", int64(t.Z))
		}
	case TransmitAndDisplay, Display:
		p.writePlacement(kv)
	case AnimationFrame:
		p.writeFrame(kv)
	case AnimationControl:
		p.writeAnimation(kv)
	case ComposeFrame:
		p.writeComposition(kv)
	}

	if p.has(fQuiet) {
		kv.uint("q", uint64(p.quiet))
	}
}

func (p *params) writePlacement(kv *keyValues) {
	if p.has(fSourceRect) {
		kv.uint("x", uint64(p.srcX))
		kv.uint("y", uint64(p.srcY))
		kv.uint("w", uint64(p.srcW))
		kv.uint("h", uint64(p.srcH))
	}
	if p.has(fCellOffset) {
		kv.uint("X", uint64(p.cellX))
		kv.uint("Y", uint64(p.cellY))
	}
	if p.has(fDisplayArea) {
		kv.uint("c", uint64(p.columns))
		kv.uint("r", uint64(p.rows))
	}
	if p.has(fZIndex) {
		kv.int("z", int64(p.zIndex))
	}
	if p.has(fCursorPolicy) && p.cursor == DoNotMoveCursor {
		kv.add("C", "1")
	}
	if p.has(fUnicodePlaceholder) {
		kv.add("U", "1")
	}
	if p.has(fParent) {
		kv.uint("P", uint64(p.parentImage))
		if p.parentPlacement != 0 {
			kv.uint("Q", uint64(p.parentPlacement))
		}
	}
	if p.has(fRelativeOffset) {
		kv.int("H", int64(p.relH))
		kv.int("V", int64(p.relV))
	}
}

func (p *params) writeFrame(kv *keyValues) {
	f := p.frame
	if f.X != 0 {
		kv.uint("x", uint64(f.X))
	}
	if f.Y != 0 {
		kv.uint("y", uint64(f.Y))
	}
	if f.BaseFrame != 0 {
		kv.uint("c", uint64(f.BaseFrame))
	}
	if f.EditFrame != 0 {
		kv.uint("r", uint64(f.EditFrame))
	}
	if f.Gap != 0 {
		kv.int("z", int64(f.Gap))
	}
	if f.Replace {
		kv.add("X", "1")
	}
	if f.Background != 0 {
		kv.uint("Y", uint64(f.Background))
	}
}

func (p *params) writeAnimation(kv *keyValues) {
	a := p.animation
	if a.State != StateUnchanged {
		kv.int("s", int64(a.State))
	}
	if a.Frame != 0 {
		kv.uint("r", uint64(a.Frame))
		if a.Gap != 0 {
			kv.int("z", int64(a.Gap))
		}
	}
	if a.CurrentFrame != 0 {
		kv.uint("c", uint64(a.CurrentFrame))
	}
	if a.HasLoops {
		// v=1 loops forever, v=N plays N-1 loops
		kv.uint("v", uint64(a.LoopCount)+1)
	}
}

func (p *params) writeComposition(kv *keyValues) {
	c := p.composition
	kv.uint("r", uint64(c.SourceFrame))
	kv.uint("c", uint64(c.DestFrame))
	if c.Width != 0 {
		kv.uint("w", uint64(c.Width))
	}
	if c.Height != 0 {
		kv.uint("h", uint64(c.Height))
	}
	if c.DestX != 0 {
		kv.uint("x", uint64(c.DestX))
	}
	if c.DestY != 0 {
		kv.uint("y", uint64(c.DestY))
	}
	if c.SourceX != 0 {
		kv.uint("X", uint64(c.SourceX))
	}
	if c.SourceY != 0 {
		kv.uint("Y", uint64(c.SourceY))
	}
	if c.Replace {
		kv.add("C", "1")
	}
}

// SupportQueryImageID is the image id used by the protocol support query
const SupportQueryImageID = 31

// DeleteAll returns a command deleting every visible placement (a=d,d=a)
func DeleteAll() *Command {
	return mustBuild(NewBuilder().Action(Delete).DeleteTarget(AllTarget(false)))
}

// DeleteByImageID returns a command deleting image id and freeing its data (a=d,d=I,i=id).
// It panics if id is zero.
func DeleteByImageID(id uint32) *Command {
	return mustBuild(NewBuilder().Action(Delete).DeleteTarget(IDTarget(true)).ImageID(id))
}

// QuerySupport returns the 1x1 RGB query used to detect protocol support.
// It panics if id is zero.
func QuerySupport(id uint32) *Command {
	return mustBuild(NewBuilder().
		Action(Query).
		ImageID(id).
		Format(RGB).
		Medium(Direct).
		Dimensions(1, 1))
}

// Place returns a command displaying a previously transmitted image over cols x rows cells.
// It panics if id is zero.
func Place(id, cols, rows uint32) *Command {
	return mustBuild(NewBuilder().Action(Display).ImageID(id).DisplayArea(cols, rows))
}

func mustBuild(b *Builder) *Command {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}
