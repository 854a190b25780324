package driver

// A subset of the TMC2209 register addresses. Current and microstep
// configuration touch IHOLD_IRUN and CHOPCONF; the others are defined for
// callers but not used by this package.
const (
	GCONF      = 0x00
	GSTAT      = 0x01
	IOIN       = 0x06
	IHOLD_IRUN = 0x10
	CHOPCONF   = 0x6C
	DRV_STATUS = 0x6F
)

// Gconf mirrors the GCONF register's general configuration bits.
type Gconf struct {
	IScaleAnalog   uint32
	InternalRsense uint32
	EnSpreadcycle  uint32
	Shaft          uint32
	PdnDisable     uint32
	MstepRegSelect uint32
}

// Pack folds the fields into the register's 32-bit wire value.
func (g Gconf) Pack() uint32 {
	return (g.IScaleAnalog & 0x01) |
		((g.InternalRsense & 0x01) << 1) |
		((g.EnSpreadcycle & 0x01) << 2) |
		((g.Shaft & 0x01) << 3) |
		((g.PdnDisable & 0x01) << 6) |
		((g.MstepRegSelect & 0x01) << 7)
}

// UnpackGconf splits a raw GCONF value back into named fields.
func UnpackGconf(bytes uint32) Gconf {
	return Gconf{
		IScaleAnalog:   bytes & 0x01,
		InternalRsense: (bytes >> 1) & 0x01,
		EnSpreadcycle:  (bytes >> 2) & 0x01,
		Shaft:          (bytes >> 3) & 0x01,
		PdnDisable:     (bytes >> 6) & 0x01,
		MstepRegSelect: (bytes >> 7) & 0x01,
	}
}

// IholdIrun mirrors the IHOLD_IRUN register: hold current, run current, and
// the delay between the two after the last step.
type IholdIrun struct {
	Ihold      uint32 // 5 bits
	Irun       uint32 // 5 bits
	Iholddelay uint32 // 4 bits
}

func (r IholdIrun) Pack() uint32 {
	return (r.Ihold & 0x1F) |
		((r.Irun & 0x1F) << 5) |
		((r.Iholddelay & 0x0F) << 10)
}

func UnpackIholdIrun(bytes uint32) IholdIrun {
	return IholdIrun{
		Ihold:      bytes & 0x1F,
		Irun:       (bytes >> 5) & 0x1F,
		Iholddelay: (bytes >> 10) & 0x0F,
	}
}

// Chopconf mirrors the chopper/microstepping fields of CHOPCONF. Mres
// encodes microstep resolution as 2^(8-Mres) steps, so 0 is 256
// microsteps and 8 is full step.
type Chopconf struct {
	Toff   uint32
	Hstrt  uint32
	Hend   uint32
	Tbl    uint32
	Vsense uint32
	Mres   uint32
	Intpol uint32
}

func (c Chopconf) Pack() uint32 {
	return (c.Toff & 0x0F) |
		((c.Hstrt & 0x07) << 4) |
		((c.Hend & 0x0F) << 7) |
		((c.Tbl & 0x03) << 15) |
		((c.Vsense & 0x01) << 17) |
		((c.Mres & 0x0F) << 24) |
		((c.Intpol & 0x01) << 28)
}

func UnpackChopconf(bytes uint32) Chopconf {
	return Chopconf{
		Toff:   bytes & 0x0F,
		Hstrt:  (bytes >> 4) & 0x07,
		Hend:   (bytes >> 7) & 0x0F,
		Tbl:    (bytes >> 15) & 0x03,
		Vsense: (bytes >> 17) & 0x01,
		Mres:   (bytes >> 24) & 0x0F,
		Intpol: (bytes >> 28) & 0x01,
	}
}

// DrvStatus mirrors a subset of DRV_STATUS: standstill, stall/current
// feedback, and thermal flags. Nothing in this package reads the register.
type DrvStatus struct {
	Stst     uint32
	Stealth  uint32
	CsActual uint32
	Ot       uint32
	Otpw     uint32
}

func UnpackDrvStatus(bytes uint32) DrvStatus {
	return DrvStatus{
		Stst:     bytes & 0x01,
		Stealth:  (bytes >> 1) & 0x01,
		CsActual: (bytes >> 2) & 0xFFFF,
		Ot:       (bytes >> 28) & 0x01,
		Otpw:     (bytes >> 29) & 0x01,
	}
}
